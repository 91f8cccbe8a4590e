// Package retry runs page loads and image fetches again after transient
// failures, pausing with exponential backoff between attempts.
//
//	cfg := retry.FromSettings(appCfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return client.FetchImage(ctx, url, referer)
//	}, cfg)
//
// Errors are classified with errors.IsRetryable unless Config.RetryIf is
// set. Once attempts are exhausted the last error is returned wrapped, so
// errors.As still finds the typed error underneath.
package retry
