package irrigation_controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerFiresOnceAndCatchesUp(t *testing.T) {
	tr, err := NewTrigger("0 0 8 * * *", time.UTC)
	require.NoError(t, err)

	base := time.Date(2024, time.June, 2, 7, 59, 59, 0, time.UTC)
	assert.False(t, tr.Due(InstantOf(base)))
	assert.Equal(t, base.Add(time.Second).Unix(), tr.Next())

	// the 08:00:00 second was skipped
	assert.True(t, tr.Due(InstantOf(base.Add(4*time.Second))))
	assert.False(t, tr.Due(InstantOf(base.Add(5*time.Second))))
	assert.Equal(t, base.Add(24*time.Hour+time.Second).Unix(), tr.Next())
}

func TestTriggerFiresOnExactSecond(t *testing.T) {
	tr, err := NewTrigger("0 0 16 * * 0", time.UTC)
	require.NoError(t, err)

	sunday := time.Date(2024, time.June, 2, 16, 0, 0, 0, time.UTC)
	assert.True(t, tr.Due(InstantOf(sunday)))
	assert.Equal(t, sunday.AddDate(0, 0, 7).Unix(), tr.Next())
}

func TestTriggerRejectsBadSchedule(t *testing.T) {
	_, err := NewTrigger("every morning", time.UTC)
	assert.Error(t, err)
}

func TestRainCounterDebounces(t *testing.T) {
	var r RainCounter
	assert.False(t, r.Sample(false))
	assert.True(t, r.Sample(true))
	assert.False(t, r.Sample(true))
	assert.False(t, r.Sample(false))
	assert.True(t, r.Sample(true))
}

func TestLedgerRotate(t *testing.T) {
	l := NewLedger(time.Monday)
	l.Current().RainfallEventCount = 3
	l.Current().ObserveTemperature(18)

	closed := l.Rotate(time.Tuesday)
	assert.Equal(t, time.Monday, closed.Weekday)
	assert.Equal(t, 3, closed.RainfallEventCount)
	assert.Equal(t, 3, l.Yesterday().RainfallEventCount)
	assert.Equal(t, time.Tuesday, l.Current().Weekday)
	assert.Zero(t, l.Current().RainfallEventCount)

	l.Rotate(time.Wednesday)
	l.Rotate(time.Thursday)
	days := l.Days()
	assert.Equal(t, time.Tuesday, days[0].Weekday)
	assert.Equal(t, time.Thursday, days[2].Weekday)
}
