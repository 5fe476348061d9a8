package memguard

import (
	"testing"

	"github.com/joeycumines/starmap/taskerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHardLimit(t *testing.T) {
	g := NewWithSampler(Thresholds{SoftPercent: 80, HardPercent: 95}, func() (float64, error) {
		return 99, nil
	})

	warning, err := g.Check()
	require.Nil(t, warning)
	require.Error(t, err)

	var exhausted *taskerr.MemoryExhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 99.0, exhausted.UsedPercent)
}

func TestCheckSoftWarning(t *testing.T) {
	g := NewWithSampler(Thresholds{SoftPercent: 80, HardPercent: 95}, func() (float64, error) {
		return 85, nil
	})

	warning, err := g.Check()
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, 85.0, warning.UsedPercent)
}

func TestCheckBelowThresholds(t *testing.T) {
	g := NewWithSampler(Thresholds{SoftPercent: 80, HardPercent: 95}, func() (float64, error) {
		return 10, nil
	})

	warning, err := g.Check()
	assert.Nil(t, warning)
	assert.NoError(t, err)
}

func TestThresholdsDefaults(t *testing.T) {
	g := NewWithSampler(Thresholds{}, func() (float64, error) { return 90, nil })
	warning, err := g.Check()
	require.NoError(t, err)
	require.NotNil(t, warning) // 90 > default soft (80), < default hard (95)
}
