package enrich

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient builds the shared transport every connector in this
// package uses, trimmed from the teacher's provider.ConnectionPool
// down to the single fixed configuration this system needs — one LLM
// endpoint per process, not a multi-provider registry.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
