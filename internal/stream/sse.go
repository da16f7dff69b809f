package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// SSEConnector dials the node's server-sent-events endpoint. Each Connect
// returns a session whose Recv yields one event payload (the concatenated
// data lines of an SSE frame).
type SSEConnector struct {
	url        string
	httpClient *http.Client
}

// NewSSEConnector creates a connector for the given events URL. The client
// has no overall timeout: the response body is a long-lived stream. Dial and
// header timeouts still bound the handshake.
func NewSSEConnector(url string) *SSEConnector {
	return &SSEConnector{
		url: url,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: 15 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Connect performs the SSE handshake.
func (c *SSEConnector) Connect(ctx context.Context) (Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("event stream handshake: http %d", resp.StatusCode)
	}

	return &sseConn{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

type sseConn struct {
	resp   *http.Response
	reader *bufio.Reader
}

// Recv reads lines until a complete SSE frame (terminated by a blank line)
// with a data payload has been assembled. Comment and id lines are skipped.
func (c *sseConn) Recv() ([]byte, error) {
	var data bytes.Buffer

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read event stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if data.Len() > 0 {
				return data.Bytes(), nil
			}
			// heartbeat frame, keep reading
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// id:, event:, retry: and comments are not needed here
		}
	}
}

func (c *sseConn) Close() error {
	return c.resp.Body.Close()
}
