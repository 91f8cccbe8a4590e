// Package ratelimit paces requests to the catalog site.
//
// A single TokenBucket is shared by every page load and image fetch of a
// run, so the configured requests_per_minute holds across all concurrent
// collections. Wait honours context cancellation, which lets an aborted
// run drain its workers without sleeping out the refill period.
package ratelimit
