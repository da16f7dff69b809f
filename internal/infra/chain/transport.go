package chain

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the http.Client both adapters share: per-call timeout
// plus a pooled transport sized for a steady trickle of chain reads.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// TransportKind classifies a transport-level failure as timeout or
// unreachable. Deadline expiry in any form is a timeout; everything else
// (refused connection, DNS failure, reset) is unreachable.
func TransportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}
