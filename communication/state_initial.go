package communication

import (
	"github.com/openkit-go/openkit/protocol"
)

// executeInitial implements spec.md §4.3's Initial state: poll the status
// endpoint until a non-transport-level answer is obtained. A 429 is
// honored as the server's own delay; any other failure advances the
// bounded backoff sequence in backoff.go. Initial never observes a
// shutdown mid-retry beyond what sendStatusRequestWithRetries already
// respects via SenderContext.sleep.
func executeInitial(c *SenderContext) SenderState {
	for {
		if c.ShutdownRequested() {
			c.markInitCompleted(false)
			return SenderState{Kind: StateTerminal}
		}

		resp, err := c.sendStatusRequestWithRetries(protocol.RequestStatus)
		if err != nil || resp == nil {
			delay, next := nextInitialBackoff(c.initFailureCount)
			c.initFailureCount = next
			if !c.sleep(delay) {
				c.markInitCompleted(false)
				return SenderState{Kind: StateTerminal}
			}
			continue
		}

		switch resp.Outcome {
		case protocol.OutcomeTooManyRequests:
			if !c.sleep(resp.RetryAfter) {
				c.markInitCompleted(false)
				return SenderState{Kind: StateTerminal}
			}
			continue
		case protocol.OutcomeFailure:
			delay, next := nextInitialBackoff(c.initFailureCount)
			c.initFailureCount = next
			if !c.sleep(delay) {
				c.markInitCompleted(false)
				return SenderState{Kind: StateTerminal}
			}
			continue
		default: // success
			c.applyServerConfig(resp.Config)
			c.initFailureCount = 0
			c.markInitCompleted(true)
			if c.serverConfig().Capture {
				return SenderState{Kind: StateCaptureOn}
			}
			return SenderState{Kind: StateCaptureOff}
		}
	}
}
