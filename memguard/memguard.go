// Package memguard implements the memory guard: it samples system memory
// usage and either reports a warning (soft threshold) or returns a fatal
// error (hard threshold). State lives in an explicit *Guard value owned by
// the caller, rather than at package scope.
package memguard

import (
	"os"

	"github.com/joeycumines/starmap/taskerr"
	"github.com/pbnjay/memory"
)

// Thresholds holds the soft/hard memory-usage percentages from the
// configuration surface.
type Thresholds struct {
	// SoftPercent triggers a non-fatal warning. Defaults to 80 if <= 0.
	SoftPercent float64
	// HardPercent aborts the job. Defaults to 95 if <= 0.
	HardPercent float64
}

func (t Thresholds) normalized() Thresholds {
	if t.SoftPercent <= 0 {
		t.SoftPercent = 80
	}
	if t.HardPercent <= 0 {
		t.HardPercent = 95
	}
	return t
}

// Sampler reports the percentage of system memory currently in use. The
// default, systemSampler, wraps github.com/pbnjay/memory. Tests substitute
// a deterministic Sampler.
type Sampler func() (usedPercent float64, err error)

// Guard is process-wide state (one instance per Engine) that Check reads
// against on every pull from a resultstream.Stream.
type Guard struct {
	thresholds Thresholds
	sample     Sampler
	hostname   string
}

// New constructs a Guard with the given thresholds, sampling real system
// memory via github.com/pbnjay/memory.
func New(thresholds Thresholds) *Guard {
	return NewWithSampler(thresholds, systemSampler)
}

// NewWithSampler constructs a Guard using a caller-supplied Sampler,
// primarily for tests that need to force a particular memory percentage.
func NewWithSampler(thresholds Thresholds, sample Sampler) *Guard {
	hostname, _ := os.Hostname()
	return &Guard{thresholds: thresholds.normalized(), sample: sample, hostname: hostname}
}

// Check samples current memory usage. It returns *taskerr.MemoryExhausted
// (and nothing else) when the hard threshold is crossed; it returns a
// non-nil *taskerr.SoftMemoryWarning (alongside a nil error) when the soft
// threshold is crossed, for the caller to log; otherwise both are nil.
func (g *Guard) Check() (warning *taskerr.SoftMemoryWarning, err error) {
	used, serr := g.sample()
	if serr != nil {
		// A sampling failure should never abort a job; treat it as "no
		// signal" rather than propagating an unrelated OS error.
		return nil, nil
	}

	if used > g.thresholds.HardPercent {
		return nil, &taskerr.MemoryExhausted{
			UsedPercent: used,
			HardPercent: g.thresholds.HardPercent,
			Hostname:    g.hostname,
		}
	}
	if used > g.thresholds.SoftPercent {
		return &taskerr.SoftMemoryWarning{
			UsedPercent: used,
			SoftPercent: g.thresholds.SoftPercent,
			Hostname:    g.hostname,
		}, nil
	}
	return nil, nil
}

func systemSampler() (float64, error) {
	total := memory.TotalMemory()
	free := memory.FreeMemory()
	if total == 0 {
		return 0, nil
	}
	used := total - free
	return float64(used) / float64(total) * 100, nil
}
