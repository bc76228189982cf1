package communication

import (
	"github.com/openkit-go/openkit/protocol"
)

// executeCaptureOff implements spec.md §4.3's CaptureOff state: capturing
// is suppressed, so every session's buffered data is discarded and the
// sender merely re-polls the status endpoint on a slower cadence (the
// server's Retry-After if one carried us here, otherwise the fixed
// status-check interval) to detect capture being re-enabled.
func executeCaptureOff(c *SenderContext, current SenderState) SenderState {
	c.clearAllSessionData()

	delay := c.statusCheckInterval()
	if current.SleepOverride != nil {
		delay = *current.SleepOverride
	}
	if !c.sleep(delay) {
		return shutdownState(StateCaptureOff)
	}

	resp, err := c.sendStatusRequestWithRetries(protocol.RequestStatus)
	c.setLastStatusCheckTime(c.clock.Now())
	if err != nil || resp == nil {
		return SenderState{Kind: StateCaptureOff}
	}

	switch resp.Outcome {
	case protocol.OutcomeTooManyRequests:
		c.applyServerConfig(resp.Config)
		return SenderState{Kind: StateCaptureOff, SleepOverride: durPtr(resp.RetryAfter)}
	case protocol.OutcomeSuccess:
		c.applyServerConfig(resp.Config)
		if resp.Config.Capture {
			return SenderState{Kind: StateCaptureOn}
		}
	}
	return SenderState{Kind: StateCaptureOff}
}
