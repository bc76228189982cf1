package openkit

import "github.com/openkit-go/openkit/objects"

// Action is a started top-level action; End records it.
type Action interface {
	End()
}

// Session is the public surface handed back from CreateSession. Its
// implementation transparently swaps the underlying beacon split as the
// session grows past the server-configured limits (spec.md §4.5); callers
// never see the split happen.
type Session interface {
	EnterAction(name string) Action
	IdentifyUser(userTag string)
	ReportCrash(errorName, reason, stacktrace string)
	TraceWebRequest(url string, responseCode int32, bytesSent, bytesReceived, startTime, endTime int64)
	End()
}

type sessionAdapter struct {
	proxy *objects.SessionProxy
}

func (a *sessionAdapter) EnterAction(name string) Action { return a.proxy.EnterAction(name) }
func (a *sessionAdapter) IdentifyUser(userTag string)     { a.proxy.IdentifyUser(userTag) }
func (a *sessionAdapter) ReportCrash(errorName, reason, stacktrace string) {
	a.proxy.ReportCrash(errorName, reason, stacktrace)
}
func (a *sessionAdapter) TraceWebRequest(url string, responseCode int32, bytesSent, bytesReceived, startTime, endTime int64) {
	a.proxy.TraceWebRequest(url, responseCode, bytesSent, bytesReceived, startTime, endTime)
}
func (a *sessionAdapter) End() { a.proxy.End() }

// nullSession is returned by CreateSession once the instance has been
// shut down: every call is a silent no-op, matching the original project's
// "null object" behavior for calls made after shutdown.
type nullSession struct{}

func (nullSession) EnterAction(string) Action                                    { return nullAction{} }
func (nullSession) IdentifyUser(string)                                          {}
func (nullSession) ReportCrash(string, string, string)                           {}
func (nullSession) TraceWebRequest(string, int32, int64, int64, int64, int64) {}
func (nullSession) End()                                                         {}

type nullAction struct{}

func (nullAction) End() {}
