// Package watch defines core types shared across subsystems.
package watch

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PageWatchSource is the sentinel source marking a target whose URL was
// supplied directly by the user instead of being resolved from a keyword.
const PageWatchSource = "HP更新"

// RowRef is an opaque row reference owned by the row store. For the sheet
// backend it is a 1-based row number, for Postgres a record id.
type RowRef string

// Field names a writable column of a monitor row.
type Field string

// Writable row fields.
const (
	FieldURL         Field = "url"
	FieldFingerprint Field = "prev_hash"
	FieldLength      Field = "prev_len"
)

// MonitorTarget is one row of the store: a page or keyword being watched.
type MonitorTarget struct {
	Ref             RowRef `json:"ref"`
	Word            string `json:"word"`
	URL             string `json:"url"`
	Source          string `json:"source"`
	Frequency       int    `json:"frequency"`
	PrevFingerprint string `json:"prev_fingerprint,omitempty"`
	PrevLength      int    `json:"prev_length,omitempty"`
}

// PageWatch reports whether the target monitors a user-supplied URL.
func (t MonitorTarget) PageWatch() bool {
	return t.Source == PageWatchSource
}

// Resolved reports whether the target has a fetchable URL.
func (t MonitorTarget) Resolved() bool {
	return strings.HasPrefix(t.URL, "http")
}

// Label returns the human label used in notification messages: the URL for
// page watches, "word（source）" for keyword watches.
func (t MonitorTarget) Label() string {
	if t.PageWatch() {
		return t.URL
	}
	return fmt.Sprintf("%s（%s）", t.Word, t.Source)
}

// Outcome classifies what happened to one target during one cycle.
type Outcome string

// Per-target outcomes. The detector produces the first four; the
// orchestrator adds the scheduling and failure outcomes.
const (
	OutcomeNoBaseline        Outcome = "no_baseline"
	OutcomeUnchanged         Outcome = "unchanged"
	OutcomeMinorSuppressed   Outcome = "minor_suppressed"
	OutcomeSignificantChange Outcome = "significant_change"
	OutcomeSkipped           Outcome = "skipped"
	OutcomeUnresolved        Outcome = "unresolved"
	OutcomeError             Outcome = "error"
)

// ErrorKind distinguishes failure classes for OutcomeError results.
type ErrorKind string

// Failure classes.
const (
	ErrKindNone    ErrorKind = ""
	ErrKindRow     ErrorKind = "row"
	ErrKindResolve ErrorKind = "resolve"
	ErrKindFetch   ErrorKind = "fetch"
	ErrKindStore   ErrorKind = "store"
)

// Result is the per-row outcome of a cycle pass.
type Result struct {
	Target   MonitorTarget
	Outcome  Outcome
	ErrKind  ErrorKind
	Err      error
	Notified bool
}

// Classification is the detector verdict plus the freshly computed state.
type Classification struct {
	Outcome     Outcome
	Fingerprint string
	Length      int
	ChangeChars int
	ChangeRatio float64
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
