package blog

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Rules locates each field of a post with a CSS selector. Title, Date and
// Content are searched inside every Container; NextPage is searched in the
// whole document. Author is optional.
type Rules struct {
	Container string `mapstructure:"container"`
	Title     string `mapstructure:"title"`
	Date      string `mapstructure:"date"`
	Content   string `mapstructure:"content"`
	Author    string `mapstructure:"author"`
	NextPage  string `mapstructure:"next_page"`
}

// DefaultRules matches the Blogger markup used by blog.python.org.
func DefaultRules() Rules {
	return Rules{
		Container: "div.date-outer",
		Title:     "h3.post-title",
		Date:      "h2.date-header",
		Content:   "div.post-body",
		Author:    "span.fn",
		NextPage:  "a.blog-pager-older-link",
	}
}

// Validate reports whether every selector compiles.
func (r Rules) Validate() error {
	_, err := r.compile()
	return err
}

type compiledRules struct {
	container goquery.Matcher
	title     goquery.Matcher
	date      goquery.Matcher
	content   goquery.Matcher
	author    goquery.Matcher
	nextPage  goquery.Matcher
}

func (r Rules) compile() (compiledRules, error) {
	var (
		out compiledRules
		err error
	)
	required := []struct {
		name string
		sel  string
		dst  *goquery.Matcher
	}{
		{"container", r.Container, &out.container},
		{"title", r.Title, &out.title},
		{"date", r.Date, &out.date},
		{"content", r.Content, &out.content},
		{"next_page", r.NextPage, &out.nextPage},
	}
	for _, field := range required {
		if *field.dst, err = compileSelector(field.name, field.sel); err != nil {
			return compiledRules{}, err
		}
	}
	if strings.TrimSpace(r.Author) != "" {
		if out.author, err = compileSelector("author", r.Author); err != nil {
			return compiledRules{}, err
		}
	}
	return out, nil
}

func compileSelector(field, sel string) (goquery.Matcher, error) {
	if strings.TrimSpace(sel) == "" {
		return nil, fmt.Errorf("rules.%s selector is required", field)
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile rules.%s selector %q: %w", field, sel, err)
	}
	return m, nil
}
