// Package main hosts the blogscraper entrypoint.
//
// A run walks a paginated blog archive from scraper.start_url, following the
// "older posts" link on every page until there is none, and extracts one
// record (date, title, author, content) per post container. The records are
// then inserted into Postgres in a single transaction.
//
// Architecture overview:
//   - Fetch: the Colly-based fetcher by default, or a headless Chromedp fetcher when scraper.headless is set.
//   - Traversal and extraction: internal/blog.Collector applies the configured CSS rules to every page and
//     optionally archives the raw HTML to a local directory or a GCS bucket.
//   - Persistence: internal/storage/postgres.PostStore creates the table when missing and inserts in order.
//   - Reporting: internal/runner logs a summary, publishes it to Pub/Sub when a topic is configured, and pushes
//     Prometheus counters to a Pushgateway when one is configured.
//
// Operational notes:
//   - Failures are logged, never fatal. The process exits 0 after a run and 1 only when configuration or the
//     logger cannot be built.
//   - SIGINT/SIGTERM stop pagination before the next fetch and roll back any open transaction.
//
// Quick checklist:
//   - Database: DB_NAME, DB_USER, DB_PASSWORD, DB_HOST, DB_PORT (defaults postgres/postgres/postgres/db/5432).
//   - Everything else: BLOGSCRAPER_<SECTION>_<KEY>, e.g. BLOGSCRAPER_SCRAPER_START_URL, or a config.yaml found via
//     BLOGSCRAPER_CONFIG, the working directory, or /etc/blogscraper.
//   - Run locally: go run ./cmd/blogscraper
package main
