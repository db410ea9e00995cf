package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", SanitizeSite("https://example.com/path?q=1"))
	require.Equal(t, "tabelog.com", SanitizeSite("tabelog.com/rstLst"))
	require.Equal(t, "example.jp", SanitizeSite("HTTP://EXAMPLE.JP"))
	require.Equal(t, "unknown", SanitizeSite("://not a url"))
	require.Equal(t, "unknown", SanitizeSite(""))
}

func TestObserversAreSafeBeforeExplicitInit(t *testing.T) {
	// Not parallel: exercises the package-level once guard.
	ObserveTarget("unchanged")
	ObserveCycle("ok")
	ObserveFetch("https://example.com", "probe", 120*time.Millisecond)
	ObserveNotification("sent")
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveRateLimitDelay("example.com", time.Second)
	ObserveHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)

	require.NotNil(t, Handler())
}
