// Package crawler implements the job listing crawl engine: the page-by-page
// controller, its termination and cursor rules, and the best-effort detail
// enrichment stage.
package crawler
