package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOracle struct {
	response string
	err      error
	calls    int
}

func (f *fakeOracle) GenerateURL(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestResolveDirectTemplate(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{}
	r := New(oracle, zap.NewNop())

	got, err := r.Resolve(context.Background(), "鮨ゆきち", "x")
	require.NoError(t, err)
	require.Equal(t, "https://x.com/search?q=%E9%AE%A8%E3%82%86%E3%81%8D%E3%81%A1", got)
	require.Zero(t, oracle.calls)
}

func TestResolveSiteSearchWithoutOracle(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{}
	r := New(oracle, zap.NewNop())

	got, err := r.Resolve(context.Background(), "chef", "indeed")
	require.NoError(t, err)
	require.Equal(t, "https://www.google.com/search?q=chef+site%3Aindeed.com", got)
	require.Zero(t, oracle.calls)
}

func TestResolveNormalizesSource(t *testing.T) {
	t.Parallel()

	r := New(nil, zap.NewNop())

	got, err := r.Resolve(context.Background(), "chef", "  Indeed  ")
	require.NoError(t, err)
	require.Contains(t, got, "indeed.com")
}

func TestResolveSubstringMatch(t *testing.T) {
	t.Parallel()

	r := New(nil, zap.NewNop())

	// "indeed求人" is not an exact key but contains one.
	got, err := r.Resolve(context.Background(), "chef", "indeed求人")
	require.NoError(t, err)
	require.Contains(t, got, "indeed.com")
}

func TestResolveExactBeatsSubstring(t *testing.T) {
	t.Parallel()

	r := New(nil, zap.NewNop())

	// "booking.com" contains the substring key "booking", but the exact
	// pass over the whole table must win before any substring match.
	got, err := r.Resolve(context.Background(), "hotel", "booking.com")
	require.NoError(t, err)
	require.Contains(t, got, "site%3Abooking.com")

	// "x" must match the direct template exactly, not substring-match a
	// longer key elsewhere in the table.
	got, err = r.Resolve(context.Background(), "news", "x")
	require.NoError(t, err)
	require.Equal(t, "https://x.com/search?q=news", got)
}

func TestResolveTableOrderStable(t *testing.T) {
	t.Parallel()

	// "twitter" precedes later aliases; both passes must iterate in
	// declaration order so the first hit is deterministic.
	require.Equal(t, "x", directTemplates[0].key)
	require.Equal(t, "twitter", directTemplates[1].key)

	r := New(nil, zap.NewNop())
	got, err := r.Resolve(context.Background(), "a", "twitter")
	require.NoError(t, err)
	require.Equal(t, "https://x.com/search?q=a", got)
}

func TestResolveUnknownSourceSkipsDirectKeys(t *testing.T) {
	t.Parallel()

	// "netflix" contains the direct key "x" but must never resolve to
	// the x.com search template; it goes to the oracle instead.
	oracle := &fakeOracle{response: "https://www.netflix.com/search?q=movie"}
	r := New(oracle, zap.NewNop())

	got, err := r.Resolve(context.Background(), "movie", "netflix")
	require.NoError(t, err)
	require.Equal(t, "https://www.netflix.com/search?q=movie", got)
	require.Equal(t, 1, oracle.calls)

	_, err = New(nil, zap.NewNop()).Resolve(context.Background(), "movie", "netflix")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestResolveOracleFallback(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{response: "https://example.com/search?q=chef"}
	r := New(oracle, zap.NewNop())

	got, err := r.Resolve(context.Background(), "chef", "my local forum")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/search?q=chef", got)
	require.Equal(t, 1, oracle.calls)
}

func TestResolveOracleNonURLFails(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{response: "I cannot help with that"}
	r := New(oracle, zap.NewNop())

	_, err := r.Resolve(context.Background(), "chef", "my local forum")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestResolveOracleErrorPropagates(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{err: errors.New("quota exhausted")}
	r := New(oracle, zap.NewNop())

	_, err := r.Resolve(context.Background(), "chef", "my local forum")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exhausted")
}

func TestResolveNoOracleNoMatch(t *testing.T) {
	t.Parallel()

	r := New(nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), "chef", "my local forum")
	require.ErrorIs(t, err, ErrNoMatch)
}
