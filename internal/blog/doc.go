// Package blog implements the pagination-and-extraction loop that walks a
// paginated blog archive and turns each post container into a Record.
//
// The traversal is decoupled from the site's markup: every field is located
// through a Rules value (one CSS selector per field), so the same Collector
// can be pointed at any archive that exposes a post container, its fields,
// and an "older posts" link.
package blog
