// Package resolver turns a keyword plus source name into a fetchable
// search URL, using a static template table first and an external
// URL-synthesis oracle as fallback.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yoshidak/webwatch/internal/watch"
)

// ErrNoMatch is returned when no template matches and no oracle is
// configured, or the oracle response contains no URL.
var ErrNoMatch = fmt.Errorf("no url template matched")

// Resolver implements template lookup with oracle fallback. A nil oracle
// disables the fallback.
type Resolver struct {
	oracle watch.Oracle
	logger *zap.Logger
}

// New constructs a Resolver.
func New(oracle watch.Oracle, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{oracle: oracle, logger: logger}
}

// Resolve maps (word, source) to a search URL. Failure is non-fatal to a
// cycle: the caller leaves the target unresolved and retries next cycle.
func (r *Resolver) Resolve(ctx context.Context, word, source string) (string, error) {
	if tmpl, ok := lookupTemplate(source); ok {
		return expand(tmpl, word), nil
	}

	if r.oracle == nil {
		return "", fmt.Errorf("resolve %q: %w", source, ErrNoMatch)
	}

	raw, err := r.oracle.GenerateURL(ctx, source, word)
	if err != nil {
		return "", fmt.Errorf("oracle generate: %w", err)
	}
	generated := strings.Trim(strings.TrimSpace(raw), "`")
	if !strings.HasPrefix(generated, "http") {
		r.logger.Warn("oracle returned non-url response",
			zap.String("source", source),
			zap.String("response", truncate(generated, 120)),
		)
		return "", fmt.Errorf("resolve %q: oracle response has no url scheme: %w", source, ErrNoMatch)
	}
	return generated, nil
}

// lookupTemplate finds a template for the source name: exact match over
// both tables first, then substring containment in either direction over
// the alias table. Direct templates never substring-match; a source that
// merely contains one of their keys falls through to the oracle.
func lookupTemplate(source string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(source))
	if key == "" {
		return "", false
	}
	for _, t := range directTemplates {
		if t.key == key {
			return t.template, true
		}
	}
	for _, t := range templates {
		if t.key == key {
			return t.template, true
		}
	}
	for _, t := range templates {
		if strings.Contains(key, t.key) || strings.Contains(t.key, key) {
			return t.template, true
		}
	}
	return "", false
}

func expand(tmpl, word string) string {
	return strings.ReplaceAll(tmpl, "{word}", url.QueryEscape(word))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
