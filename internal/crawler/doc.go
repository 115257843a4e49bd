// Package crawler defines the contracts shared by the crawl pipeline: the
// queue of pages to visit, the page fetcher and the host blocklist.
package crawler
