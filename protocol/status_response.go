// Package protocol models the wire contract between the agent core and the
// analytics backend: parsing status-response bodies into ServerConfig
// values, building the three request kinds' query strings, and encoding
// in-memory records into the UTF-8 fragments the beacon cache stores.
//
// The response grammar and defaulting rules are specified in spec.md §6 and
// are implemented here exactly, including the documented Retry-After
// integer-seconds-only parsing (spec.md §9: the HTTP-date form is
// deliberately not implemented, matching the original).
package protocol

import (
	"strconv"
	"strings"
	"time"
)

// ServerConfig is the server-directed capture configuration, as received in
// a status, new-session, or beacon-send response.
type ServerConfig struct {
	Capture              bool
	CrashReportingEnabled bool
	ErrorReportingEnabled bool
	ServerID              int32
	MaxBeaconSizeBytes    int32
	Multiplicity          int32
	SendIntervalMs        int32
	MaxSessionDurationMs  int32
	MaxEventsPerSession   int32
	SessionTimeoutMs      int32
}

// DefaultServerConfig mirrors the original core's built-in defaults, applied
// before any response has been received.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Capture:              true,
		CrashReportingEnabled: true,
		ErrorReportingEnabled: true,
		ServerID:              1,
		MaxBeaconSizeBytes:    30 * 1024,
		Multiplicity:          1,
		SendIntervalMs:        120000,
		MaxSessionDurationMs:  0, // disabled unless server says otherwise
		MaxEventsPerSession:   0, // disabled unless server says otherwise
		SessionTimeoutMs:      600000,
	}
}

// Merge returns update in place of cfg. There is nothing partial to
// reconcile: every caller passes a ServerConfig that already went through
// ParseStatusResponse (which fills every field, explicit key or default) or
// an equivalently complete local synthesis (flushMultiplicity), never a
// sparse one, so update is always the whole next configuration rather than
// a delta over the receiver.
func (cfg ServerConfig) Merge(update ServerConfig) ServerConfig {
	return update
}

// StatusResponseOutcome classifies the HTTP-level result of a status,
// new-session, or beacon-send request.
type StatusResponseOutcome int

const (
	// OutcomeSuccess is any 2xx response.
	OutcomeSuccess StatusResponseOutcome = iota
	// OutcomeTooManyRequests is HTTP 429; RetryAfter carries the server's
	// requested delay.
	OutcomeTooManyRequests
	// OutcomeFailure is any other response, or a transport-level error.
	OutcomeFailure
)

func (o StatusResponseOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTooManyRequests:
		return "too-many-requests"
	default:
		return "failure"
	}
}

// DefaultRetryAfter is used when a 429 response carries no parseable
// Retry-After header.
const DefaultRetryAfter = 10 * time.Minute

// StatusResponse is the parsed result of a status/new-session/beacon-send
// HTTP exchange.
type StatusResponse struct {
	Outcome    StatusResponseOutcome
	Config     ServerConfig
	RetryAfter time.Duration
}

// ParseStatusResponse parses body (a "key=value&key=value..." string) into a
// ServerConfig, applying defaults for any key not present. Malformed
// integer fields silently fall back to the corresponding default; neither
// this function nor its caller logs them, and they are never surfaced as
// failures.
func ParseStatusResponse(body string) ServerConfig {
	cfg := DefaultServerConfig()

	for _, kv := range strings.Split(body, "&") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		key := parts[0]
		value := ""
		if len(parts) == 2 {
			value = parts[1]
		}

		switch key {
		case "cp":
			cfg.Capture = value == "1"
		case "si":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.SendIntervalMs = int32(n) * 1000
			}
		case "id":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.ServerID = int32(n)
			}
		case "bl":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxBeaconSizeBytes = int32(n)
			}
		case "er":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.ErrorReportingEnabled = n != 0
			}
		case "cr":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.CrashReportingEnabled = n != 0
			}
		case "mp":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Multiplicity = int32(n)
			}
		case "bn":
			// monitor name: accepted, not modeled as a field consumers need.
		}
	}

	return cfg
}

// ParseRetryAfterSeconds parses an HTTP Retry-After header value as an
// integer number of seconds (the original's HTTP-date variant is
// deliberately unimplemented; see spec.md §9). On parse failure,
// DefaultRetryAfter is returned.
func ParseRetryAfterSeconds(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
