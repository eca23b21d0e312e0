package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 90 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient sets the shared client's timeout from a
// seconds value (zero or negative falls back to the default) and returns
// the applied duration.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

// Client returns the shared HTTP client used for all external calls.
func Client() *http.Client {
	return externalHTTPClient
}
