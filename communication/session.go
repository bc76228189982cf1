package communication

import (
	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/protocol"
)

// ManagedSession is the surface the sender and watchdog need from a
// session, without depending on the full Session/SessionProxy object
// model (package objects implements this interface and imports this
// package; this package never imports objects, so there is no cycle —
// openkit wires them together).
type ManagedSession interface {
	BeaconKey() caching.BeaconKey
	IsConfigured() bool
	IsFinished() bool
	ApplyServerConfig(cfg protocol.ServerConfig)
	ClearCapturedData()
	ClientIP() string
	// End marks the session finished without transmitting it; used by
	// FlushSessions to close every still-open session before the final
	// transmission pass.
	End()
}
