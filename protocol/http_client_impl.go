package protocol

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	nhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openkit-go/openkit/log"
)

const defaultHTTPTimeout = 60 * time.Second

// httpClient is the production HTTPClient: it builds the three request
// shapes over a *net/http.Client, the way the teacher's client/http package
// wraps net/http.RoundTripper behind a narrow domain interface.
type httpClient struct {
	underlying *nhttp.Client
	l          log.Logger
}

// NewHTTPClientFactory returns an HTTPClientFactory producing httpClient
// instances sharing one *net/http.Client (and therefore one connection
// pool) across the sender's lifetime. transport may be nil to use
// net/http.DefaultTransport.
func NewHTTPClientFactory(transport nhttp.RoundTripper, l log.Logger) HTTPClientFactory {
	if transport == nil {
		transport = nhttp.DefaultTransport
	}
	client := &nhttp.Client{Transport: transport, Timeout: defaultHTTPTimeout}
	named := l.Named("HTTPClient")
	return func() (HTTPClient, error) {
		return &httpClient{underlying: client, l: named}, nil
	}
}

func (c *httpClient) do(ctx context.Context, method, rawURL, clientIP string, body io.Reader, gzipped bool) (*StatusResponse, error) {
	req, err := nhttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if clientIP != "" {
		req.Header.Set("X-Client-IP", clientIP)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
		if gzipped {
			req.Header.Set("Content-Encoding", "gzip")
		}
	}

	resp, err := c.underlying.Do(req)
	if err != nil {
		return &StatusResponse{Outcome: OutcomeFailure}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == nhttp.StatusTooManyRequests {
		return &StatusResponse{
			Outcome:    OutcomeTooManyRequests,
			RetryAfter: ParseRetryAfterSeconds(resp.Header.Get("Retry-After")),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.l.Infow("non-2xx response", "status", resp.StatusCode)
		return &StatusResponse{Outcome: OutcomeFailure}, nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusResponse{Outcome: OutcomeFailure}, nil
	}
	return &StatusResponse{Outcome: OutcomeSuccess, Config: ParseStatusResponse(string(payload))}, nil
}

func statusQuery(kind RequestKind, req StatusRequest) string {
	v := url.Values{}
	v.Set("type", "m")
	v.Set("srvid", strconv.FormatInt(int64(req.ServerID), 10))
	v.Set("app", req.AppID)
	v.Set("va", req.Version)
	if kind == RequestNewSession {
		v.Set("ns", "1")
	}
	return req.Endpoint + "?" + v.Encode()
}

func (c *httpClient) SendStatusRequest(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	return c.do(ctx, nhttp.MethodGet, statusQuery(RequestStatus, req), "", nil, false)
}

func (c *httpClient) SendNewSessionRequest(ctx context.Context, req StatusRequest) (*StatusResponse, error) {
	return c.do(ctx, nhttp.MethodGet, statusQuery(RequestNewSession, req), "", nil, false)
}

func (c *httpClient) SendBeaconRequest(ctx context.Context, req BeaconSendRequest) (*StatusResponse, error) {
	rawURL := fmt.Sprintf("%s?type=m&srvid=%d", req.Endpoint, req.ServerID)

	var body io.Reader = bytes.NewBufferString(req.Body)
	if req.Gzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write([]byte(req.Body)); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		body = &buf
	}

	return c.do(ctx, nhttp.MethodPost, rawURL, req.ClientIP, body, req.Gzip)
}
