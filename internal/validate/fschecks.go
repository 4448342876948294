package validate

import (
	"context"
	"net/http"
	"os"
	"time"
)

// osStat is a thin indirection over os.Stat so path-check stage tests can
// stub filesystem state without touching a real disk.
var osStat = os.Stat

// checkURLReachable issues a HEAD request (falling back to GET on a 405,
// the way a surprising number of APIs respond to HEAD) within timeout and
// reports whether it got a non-5xx response.
var checkURLReachable = func(raw string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			return false
		}
		getResp, err := client.Do(getReq)
		if err != nil {
			return false
		}
		defer getResp.Body.Close()
		return getResp.StatusCode < 500
	}
	return resp.StatusCode < 500
}
