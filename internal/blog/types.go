package blog

import "net/http"

// UnknownAuthor is stored when a post container carries no author element.
const UnknownAuthor = "Unknown"

// Record is one extracted post. Values are never modified after extraction.
type Record struct {
	Date    string `json:"date" db:"date"`
	Title   string `json:"title" db:"title"`
	Author  string `json:"author" db:"author"`
	Content string `json:"content" db:"content"`
}

// Page is the result of fetching a single archive location.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Result is what a Collect call produced, even when the walk stopped early.
type Result struct {
	Records []Record
	// Pages counts successful fetches.
	Pages int
	// Skipped counts containers dropped for a missing required field.
	Skipped int
}
