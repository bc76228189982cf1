package protocol

import "context"

// RequestKind distinguishes the three HTTP exchanges the core issues.
type RequestKind int

const (
	RequestStatus RequestKind = iota
	RequestNewSession
	RequestBeaconSend
)

// StatusRequest carries everything needed to build a status or new-session
// GET request (spec.md §6): "GET {endpoint}?type=m&srvid={server_id}&app={app_id}&va={version}",
// with an additional ns=1 discriminator for new-session requests.
type StatusRequest struct {
	Kind      RequestKind
	Endpoint  string
	ServerID  int32
	AppID     string
	Version   string
}

// BeaconSendRequest carries a POST beacon-send exchange: the chunk body,
// the client IP to attach as X-Client-IP (if known), and whether to gzip
// the body.
type BeaconSendRequest struct {
	Endpoint string
	ServerID int32
	ClientIP string
	Body     string
	Gzip     bool
}

// HTTPClient is the injectable transport capability. Implementations own
// TLS, header assembly, and body compression; the core only ever sees the
// three request/response shapes below.
type HTTPClient interface {
	SendStatusRequest(ctx context.Context, req StatusRequest) (*StatusResponse, error)
	SendNewSessionRequest(ctx context.Context, req StatusRequest) (*StatusResponse, error)
	SendBeaconRequest(ctx context.Context, req BeaconSendRequest) (*StatusResponse, error)
}

// HTTPClientFactory builds an HTTPClient, deferring construction until the
// sender actually needs one (mirrors the original's "Returns None if the
// HTTP client cannot be constructed").
type HTTPClientFactory func() (HTTPClient, error)
