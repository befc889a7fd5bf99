// Package crawler implements the link-checking crawl: URL canonicalization
// and resolution, the domain policy that decides what is internal or skipped,
// the per-URL check record, and the round-based engine that drives fetches
// through the Fetcher and PageFetcher collaborators and persists results via
// a Recorder.
package crawler
