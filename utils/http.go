// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client for outbound calls to external services.
// timeout caps the whole request, body read included.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
