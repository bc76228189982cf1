package communication

import "github.com/openkit-go/openkit/protocol"

// flushMultiplicity is the locally synthesized configuration applied to any
// session that never received a real server config before shutdown: a bare
// multiplicity=1 so its data is still eligible to be sent, with no network
// round-trip (spec.md §4.3's FlushSessions state, original
// BeaconSendingFlushSessionsState.cxx).
func flushMultiplicity() protocol.ServerConfig {
	cfg := protocol.DefaultServerConfig()
	cfg.Multiplicity = 1
	return cfg
}

// executeFlushSessions implements spec.md §4.3's FlushSessions state:
// reached only via shutdown. It closes every still-open session, locally
// configures any session that never heard back from the server, then makes
// a single best-effort attempt to transmit every finished-and-configured
// session, ignoring 429/failure — there is no one left to retry for. It
// always proceeds to Terminal.
func executeFlushSessions(c *SenderContext) SenderState {
	for _, sess := range c.openSessions() {
		sess.End()
	}

	for _, sess := range c.unconfiguredSessions() {
		sess.ApplyServerConfig(flushMultiplicity())
	}

	for _, sess := range c.finishedConfiguredSessions() {
		c.transmitSession(sess)
	}

	return SenderState{Kind: StateTerminal}
}
