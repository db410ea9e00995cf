// Package detector fingerprints normalized page text and classifies
// changes against the stored baseline.
package detector

import (
	"fmt"
	"unicode/utf8"

	"github.com/yoshidak/webwatch/internal/watch"
)

// Config holds the noise-suppression thresholds. A change to a page
// whose baseline exceeds LargePageThreshold characters is suppressed
// when it moves fewer than MinChangeChars characters and less than
// MinChangeRatio of the baseline. Smaller pages always notify.
type Config struct {
	LargePageThreshold int
	MinChangeChars     int
	MinChangeRatio     float64
}

// DefaultConfig matches the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		LargePageThreshold: 3000,
		MinChangeChars:     50,
		MinChangeRatio:     0.01,
	}
}

// Detector classifies normalized text against the previous fingerprint.
type Detector struct {
	hasher watch.Hasher
	cfg    Config
}

// New creates a Detector. Zero-valued thresholds fall back to defaults.
func New(hasher watch.Hasher, cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.LargePageThreshold <= 0 {
		cfg.LargePageThreshold = def.LargePageThreshold
	}
	if cfg.MinChangeChars <= 0 {
		cfg.MinChangeChars = def.MinChangeChars
	}
	if cfg.MinChangeRatio <= 0 {
		cfg.MinChangeRatio = def.MinChangeRatio
	}
	return &Detector{hasher: hasher, cfg: cfg}
}

// Classify compares the normalized text with the stored baseline.
// Lengths are counted in runes so multibyte pages measure the same as
// their visible character count.
func (d *Detector) Classify(text string, prevFingerprint string, prevLength int) (watch.Classification, error) {
	fingerprint, err := d.hasher.Hash([]byte(text))
	if err != nil {
		return watch.Classification{}, fmt.Errorf("fingerprint text: %w", err)
	}
	length := utf8.RuneCountInString(text)

	c := watch.Classification{
		Fingerprint: fingerprint,
		Length:      length,
	}

	if prevFingerprint == "" {
		c.Outcome = watch.OutcomeNoBaseline
		return c, nil
	}
	if fingerprint == prevFingerprint {
		c.Outcome = watch.OutcomeUnchanged
		return c, nil
	}

	c.ChangeChars = length - prevLength
	if c.ChangeChars < 0 {
		c.ChangeChars = -c.ChangeChars
	}
	divisor := prevLength
	if divisor < 1 {
		divisor = 1
	}
	c.ChangeRatio = float64(c.ChangeChars) / float64(divisor)

	if d.suppress(prevLength, c.ChangeChars, c.ChangeRatio) {
		c.Outcome = watch.OutcomeMinorSuppressed
		return c, nil
	}
	c.Outcome = watch.OutcomeSignificantChange
	return c, nil
}

func (d *Detector) suppress(prevLength, changeChars int, ratio float64) bool {
	if prevLength <= d.cfg.LargePageThreshold {
		return false
	}
	return changeChars < d.cfg.MinChangeChars && ratio < d.cfg.MinChangeRatio
}
