package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseStatusResponseAppliesOverridesAndDefaults(t *testing.T) {
	cfg := ParseStatusResponse("cp=1&si=30&mp=2")
	require.True(t, cfg.Capture)
	require.EqualValues(t, 30000, cfg.SendIntervalMs)
	require.EqualValues(t, 2, cfg.Multiplicity)
	// untouched keys keep their defaults.
	require.EqualValues(t, DefaultServerConfig().MaxBeaconSizeBytes, cfg.MaxBeaconSizeBytes)
}

func TestParseStatusResponseCaptureFalse(t *testing.T) {
	cfg := ParseStatusResponse("cp=0")
	require.False(t, cfg.Capture)
}

func TestParseStatusResponseMalformedIntegerFallsBackToDefault(t *testing.T) {
	cfg := ParseStatusResponse("si=not-a-number")
	require.Equal(t, DefaultServerConfig().SendIntervalMs, cfg.SendIntervalMs)
}

func TestParseStatusResponseErrorAndCrashReportingNonZeroMeansEnabled(t *testing.T) {
	cfg := ParseStatusResponse("er=2&cr=2")
	require.True(t, cfg.ErrorReportingEnabled)
	require.True(t, cfg.CrashReportingEnabled)

	cfg = ParseStatusResponse("er=0&cr=0")
	require.False(t, cfg.ErrorReportingEnabled)
	require.False(t, cfg.CrashReportingEnabled)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	require.Equal(t, 30*time.Second, ParseRetryAfterSeconds("30"))
	require.Equal(t, DefaultRetryAfter, ParseRetryAfterSeconds("Wed, 21 Oct 2099 07:28:00 GMT"))
	require.Equal(t, DefaultRetryAfter, ParseRetryAfterSeconds(""))
	require.Equal(t, DefaultRetryAfter, ParseRetryAfterSeconds("-5"))
}
