package communication

import (
	"context"
	"time"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/protocol"
)

// statusRequestRetryCount and statusRequestInitialBackoff implement
// send_status_request's internal retry loop (spec.md §4.3): up to 5
// attempts, 1s initial backoff doubling each attempt, returning on the
// first success or 429.
const (
	statusRequestRetryCount      = 5
	statusRequestInitialBackoff  = 1 * time.Second
)

// sendStatusRequestWithRetries issues a status request, retrying transient
// failures with doubling backoff. It returns immediately on success or on
// a 429 (too-many-requests carries its own Retry-After and is not itself
// a retryable failure).
func (c *SenderContext) sendStatusRequestWithRetries(kind protocol.RequestKind) (*protocol.StatusResponse, error) {
	client, err := c.httpClient()
	if err != nil {
		return nil, err
	}
	req := protocol.StatusRequest{
		Kind:     kind,
		Endpoint: c.cfg.Endpoint,
		ServerID: c.serverConfig().ServerID,
		AppID:    c.cfg.AppID,
		Version:  c.cfg.Version,
	}

	backoff := statusRequestInitialBackoff
	var lastErr error
	for attempt := 0; attempt < statusRequestRetryCount; attempt++ {
		if attempt > 0 {
			if !c.sleep(backoff) {
				return nil, lastErr
			}
			backoff *= 2
		}

		var resp *protocol.StatusResponse
		if kind == protocol.RequestNewSession {
			resp, err = client.SendNewSessionRequest(context.Background(), req)
		} else {
			resp, err = client.SendStatusRequest(context.Background(), req)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Outcome == protocol.OutcomeFailure {
			lastErr = nil
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// transmitSession drains a single session's cache entry through the
// prepare/chunk/commit-or-rollback protocol (spec.md §3), sending each
// chunk with SendBeaconRequest. It stops early, leaving the remainder in
// the cache, if the server answers 429 or a chunk send fails.
func (c *SenderContext) transmitSession(sess ManagedSession) (outcome protocol.StatusResponseOutcome, retryAfter time.Duration) {
	var key caching.BeaconKey = sess.BeaconKey()
	client, err := c.httpClient()
	if err != nil {
		return protocol.OutcomeFailure, 0
	}

	for {
		handle, ok := c.cache.PrepareChunkSnapshot(key)
		if !ok {
			return protocol.OutcomeSuccess, 0
		}

		sentAny := false
		for {
			chunk := handle.NextChunk(chunkPrefix(c, sess), maxBeaconSizeBytes(c), "&")
			if chunk == "" {
				break
			}
			sentAny = true

			resp, err := client.SendBeaconRequest(context.Background(), protocol.BeaconSendRequest{
				Endpoint: c.cfg.Endpoint,
				ServerID: c.serverConfig().ServerID,
				ClientIP: sess.ClientIP(),
				Body:     chunk,
			})
			if err != nil {
				handle.RollbackChunk()
				return protocol.OutcomeFailure, 0
			}
			switch resp.Outcome {
			case protocol.OutcomeTooManyRequests:
				handle.RollbackChunk()
				return protocol.OutcomeTooManyRequests, resp.RetryAfter
			case protocol.OutcomeFailure:
				handle.RollbackChunk()
				return protocol.OutcomeFailure, 0
			default:
				handle.CommitChunk()
				c.applyServerConfig(resp.Config)
			}
		}

		if !sentAny {
			handle.CommitChunk()
			return protocol.OutcomeSuccess, 0
		}
		if c.cache.IsEmpty(key) {
			return protocol.OutcomeSuccess, 0
		}
	}
}

func chunkPrefix(c *SenderContext, sess ManagedSession) string {
	return "" // no beacon framing (vv=, ap=, ...) is added: chunks carry only the encoded event and action fragments.
}

func maxBeaconSizeBytes(c *SenderContext) int {
	n := c.serverConfig().MaxBeaconSizeBytes
	if n <= 0 {
		n = protocol.DefaultServerConfig().MaxBeaconSizeBytes
	}
	return int(n)
}
