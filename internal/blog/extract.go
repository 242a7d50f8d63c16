package blog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extract turns every container of doc into a Record. Containers missing a
// required field are reported as gaps instead.
func (c compiledRules) extract(doc *goquery.Document, pageURL string) ([]Record, []ExtractionGap) {
	var (
		records []Record
		gaps    []ExtractionGap
	)
	doc.FindMatcher(c.container).Each(func(i int, s *goquery.Selection) {
		title, hasTitle := firstText(s, c.title)
		date, hasDate := firstText(s, c.date)
		content, hasContent := firstText(s, c.content)

		var missing []string
		if !hasTitle {
			missing = append(missing, "title")
		}
		if !hasDate {
			missing = append(missing, "date")
		}
		if !hasContent {
			missing = append(missing, "content")
		}
		if len(missing) > 0 {
			gaps = append(gaps, ExtractionGap{URL: pageURL, Index: i, Missing: missing})
			return
		}

		author := UnknownAuthor
		if c.author != nil {
			if a, ok := firstText(s, c.author); ok {
				author = a
			}
		}
		records = append(records, Record{
			Date:    date,
			Title:   title,
			Author:  author,
			Content: content,
		})
	})
	return records, gaps
}

// nextLocation returns the absolute target of the first "older posts" link,
// or "" when the document has none. A link whose href cannot be parsed is a
// *FetchError for that href, never the end of the archive.
func (c compiledRules) nextLocation(doc *goquery.Document, base *url.URL) (string, error) {
	href, ok := doc.FindMatcher(c.nextPage).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", &FetchError{URL: href, Err: fmt.Errorf("parse older posts link: %w", err)}
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func firstText(s *goquery.Selection, m goquery.Matcher) (string, bool) {
	match := s.FindMatcher(m).First()
	if match.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(match.Text()), true
}
