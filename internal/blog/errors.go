package blog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoFetcher is returned when a Collector is built without a Fetcher.
var ErrNoFetcher = errors.New("collector requires a fetcher")

// FetchError reports that a page could not be retrieved. StatusCode is zero
// for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s: %v", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionGap describes a container that lacked at least one required field.
type ExtractionGap struct {
	URL     string
	Index   int
	Missing []string
}

func (g ExtractionGap) Error() string {
	return fmt.Sprintf("container %d on %s missing %s", g.Index, g.URL, strings.Join(g.Missing, ", "))
}
