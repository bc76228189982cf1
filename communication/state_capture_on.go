package communication

import (
	"github.com/openkit-go/openkit/protocol"
)

// executeCaptureOn implements spec.md §4.3's CaptureOn state: register new
// sessions with the server, flush finished sessions immediately, and flush
// still-open sessions once per send interval. A server response turning
// capture off transitions to CaptureOff; a transport failure does not —
// CaptureOn keeps retrying on its own schedule rather than falling back to
// Initial's backoff.
func executeCaptureOn(c *SenderContext) SenderState {
	for _, sess := range c.unconfiguredSessions() {
		resp, err := c.sendStatusRequestWithRetries(protocol.RequestNewSession)
		if err != nil || resp == nil {
			continue
		}
		if resp.Outcome == protocol.OutcomeSuccess {
			sess.ApplyServerConfig(resp.Config)
			c.applyServerConfig(resp.Config)
		}
		if c.ShutdownRequested() {
			return shutdownState(StateCaptureOn)
		}
	}

	for _, sess := range c.finishedConfiguredSessions() {
		c.transmitSession(sess)
		c.RemoveSession(sess.BeaconKey())
		if c.ShutdownRequested() {
			return shutdownState(StateCaptureOn)
		}
	}

	now := c.clock.Now()
	if now.Sub(c.getLastOpenSessionBeaconSendTime()) >= c.sendInterval() {
		for _, sess := range c.openConfiguredSessions() {
			outcome, retryAfter := c.transmitSession(sess)
			if outcome == protocol.OutcomeTooManyRequests {
				return SenderState{Kind: StateCaptureOff, SleepOverride: durPtr(retryAfter)}
			}
			if c.ShutdownRequested() {
				return shutdownState(StateCaptureOn)
			}
		}
		c.setLastOpenSessionBeaconSendTime(now)
	}

	resp, err := c.sendStatusRequestWithRetries(protocol.RequestStatus)
	c.setLastStatusCheckTime(c.clock.Now())
	if err == nil && resp != nil {
		switch resp.Outcome {
		case protocol.OutcomeTooManyRequests:
			c.applyServerConfig(resp.Config)
			return SenderState{Kind: StateCaptureOff, SleepOverride: durPtr(resp.RetryAfter)}
		case protocol.OutcomeSuccess:
			c.applyServerConfig(resp.Config)
			if !resp.Config.Capture {
				return SenderState{Kind: StateCaptureOff}
			}
		}
	}

	if !c.sleep(c.sendInterval()) {
		return shutdownState(StateCaptureOn)
	}
	return SenderState{Kind: StateCaptureOn}
}
