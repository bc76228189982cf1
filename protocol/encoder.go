package protocol

import (
	"fmt"
	"net/url"
	"strings"
)

// EventType identifies the kind of record a beacon fragment encodes. The
// numeric values are stable across releases since they appear on the wire.
type EventType int

const (
	EventTypeAction EventType = iota + 1
	EventTypeValueString
	EventTypeValueInt
	EventTypeValueDouble
	EventTypeSessionStart
	EventTypeSessionEnd
	EventTypeWebRequest
	EventTypeError
	EventTypeCrash
	EventTypeIdentifyUser
)

// escape percent-encodes a free-form string value for inclusion in a
// key=value beacon fragment, the same grammar used by status responses
// (spec.md §6): reserved characters (&, =, %) must not leak into the field
// boundary.
func escape(s string) string {
	return url.QueryEscape(s)
}

// EncodeAction builds the fragment for a top-level action.
func EncodeAction(actionID, parentActionID int32, name string, startTime, endTime int64, startSeq, endSeq int32) string {
	return fmt.Sprintf("et=%d&na=%s&it=%d&ca=%d&pa=%d&s0=%d&t0=%d&s1=%d&t1=%d",
		EventTypeAction, escape(name), actionID, actionID, parentActionID, startSeq, startTime, endSeq, endTime-startTime)
}

// EncodeValueString builds the fragment for a reportValue(string) call.
func EncodeValueString(actionID int32, name, value string, timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&na=%s&it=%d&pa=%d&s0=%d&t0=%d&vl=%s",
		EventTypeValueString, escape(name), actionID, actionID, seq, timestamp, escape(value))
}

// EncodeValueInt builds the fragment for a reportValue(int) call.
func EncodeValueInt(actionID int32, name string, value int64, timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&na=%s&it=%d&pa=%d&s0=%d&t0=%d&vl=%d",
		EventTypeValueInt, escape(name), actionID, actionID, seq, timestamp, value)
}

// EncodeValueDouble builds the fragment for a reportValue(double) call.
func EncodeValueDouble(actionID int32, name string, value float64, timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&na=%s&it=%d&pa=%d&s0=%d&t0=%d&vl=%f",
		EventTypeValueDouble, escape(name), actionID, actionID, seq, timestamp, value)
}

// EncodeWebRequest builds the fragment for a traceWebRequest trace.
func EncodeWebRequest(actionID int32, url string, responseCode int32, bytesSent, bytesReceived int64, startTime, endTime int64, startSeq, endSeq int32) string {
	return fmt.Sprintf("et=%d&na=%s&it=%d&pa=%d&s0=%d&t0=%d&s1=%d&t1=%d&rc=%d&bs=%d&br=%d",
		EventTypeWebRequest, escape(url), actionID, actionID, startSeq, startTime, endSeq, endTime-startTime,
		responseCode, bytesSent, bytesReceived)
}

// EncodeIdentifyUser builds the fragment for an identifyUser tag.
func EncodeIdentifyUser(userTag string, timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&na=%s&s0=%d&t0=%d", EventTypeIdentifyUser, escape(userTag), seq, timestamp)
}

// EncodeCrash builds the fragment for a reportCrash call.
func EncodeCrash(errorName, reason, stacktrace string, timestamp int64, seq int32) string {
	trimmed := strings.ReplaceAll(stacktrace, "\r\n", "\n")
	return fmt.Sprintf("et=%d&na=%s&s0=%d&t0=%d&rs=%s&st=%s",
		EventTypeCrash, escape(errorName), seq, timestamp, escape(reason), escape(trimmed))
}

// EncodeSessionStart builds the fragment marking a session's start.
func EncodeSessionStart(timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&s0=%d&t0=%d", EventTypeSessionStart, seq, timestamp)
}

// EncodeSessionEnd builds the fragment marking a session's end.
func EncodeSessionEnd(timestamp int64, seq int32) string {
	return fmt.Sprintf("et=%d&s0=%d&t0=%d", EventTypeSessionEnd, seq, timestamp)
}
