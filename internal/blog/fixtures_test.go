package blog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

type post struct {
	title, date, content, author string
	noTitle, noDate, noContent   bool
}

// archivePage renders a Blogger-style page with one date-outer per post.
func archivePage(next string, posts ...post) []byte {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"blog-posts\">")
	for _, p := range posts {
		b.WriteString(`<div class="date-outer">`)
		if !p.noDate {
			fmt.Fprintf(&b, `<h2 class="date-header"><span>%s</span></h2>`, p.date)
		}
		b.WriteString(`<div class="post-outer">`)
		if !p.noTitle {
			fmt.Fprintf(&b, `<h3 class="post-title entry-title">  %s  </h3>`, p.title)
		}
		if !p.noContent {
			fmt.Fprintf(&b, `<div class="post-body entry-content">%s</div>`, p.content)
		}
		if p.author != "" {
			fmt.Fprintf(&b, `<div class="post-footer"><span class="post-author vcard">Posted by <span class="fn">%s</span></span></div>`, p.author)
		}
		b.WriteString(`</div></div>`)
	}
	b.WriteString("</div>")
	if next != "" {
		fmt.Fprintf(&b, `<div id="blog-pager"><a class="blog-pager-older-link" href="%s">Older Posts</a></div>`, next)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string][]byte
	errs   map[string]error
	status map[string]int
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:  make(map[string][]byte),
		errs:   make(map[string]error),
		status: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return Page{}, err
	}
	if code, ok := f.status[url]; ok {
		return Page{}, &FetchError{URL: url, StatusCode: code, Err: fmt.Errorf("%s", http.StatusText(code))}
	}
	body, ok := f.pages[url]
	if !ok {
		return Page{}, &FetchError{URL: url, StatusCode: http.StatusNotFound, Err: fmt.Errorf("not found")}
	}
	return Page{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
