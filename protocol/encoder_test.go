package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeActionContainsCoreFields(t *testing.T) {
	frag := EncodeAction(1, 0, "tap button", 1000, 1200, 1, 2)
	require.True(t, strings.HasPrefix(frag, "et=1&"))
	require.Contains(t, frag, "na=tap+button")
	require.Contains(t, frag, "ca=1")
}

func TestEncodeValueEscapesReservedCharacters(t *testing.T) {
	frag := EncodeValueString(1, "key&name", "a=b", 10, 1)
	require.Contains(t, frag, "na=key%26name")
	require.Contains(t, frag, "vl=a%3Db")
}

func TestEncodeCrashNormalizesLineEndings(t *testing.T) {
	frag := EncodeCrash("NPE", "boom", "line1\r\nline2", 10, 1)
	require.Contains(t, frag, "line1%0Aline2")
	require.NotContains(t, frag, "%0D")
}

func TestEncodeWebRequestIncludesTiming(t *testing.T) {
	frag := EncodeWebRequest(1, "https://example.com", 200, 100, 200, 10, 50, 1, 2)
	require.Contains(t, frag, "rc=200")
	require.Contains(t, frag, "t1=40")
}
