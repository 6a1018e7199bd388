package deviations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedSnapshot(door string, startMinutes, duration int, date time.Time) Snapshot {
	planned := date.Add(time.Duration(startMinutes) * time.Minute)
	return Snapshot{
		ResourceID:      door,
		Date:            &date,
		StartMinutes:    startMinutes,
		DurationMinutes: duration,
		PlannedStart:    &planned,
	}
}

func TestImpactForMinutes(t *testing.T) {
	assert.Equal(t, ImpactLow, ImpactForMinutes(6))
	assert.Equal(t, ImpactLow, ImpactForMinutes(15))
	assert.Equal(t, ImpactMedium, ImpactForMinutes(16))
	assert.Equal(t, ImpactMedium, ImpactForMinutes(30))
	assert.Equal(t, ImpactHigh, ImpactForMinutes(31))
	assert.Equal(t, ImpactHigh, ImpactForMinutes(-45), "sign does not matter")
}

func TestDetectReschedule(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("delay beyond tolerance", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-1", 8*60+40, 30, date)

		findings := DetectReschedule(before, after)
		require.Len(t, findings, 1)
		f := findings[0]
		assert.Equal(t, TypeDelay, f.Type)
		require.NotNil(t, f.DeviationMinutes)
		assert.Equal(t, 40, *f.DeviationMinutes)
		assert.Equal(t, ImpactHigh, f.ImpactLevel)
	})

	t.Run("early shift keeps its sign", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-1", 8*60-20, 30, date)

		findings := DetectReschedule(before, after)
		require.Len(t, findings, 1)
		assert.Equal(t, TypeEarly, findings[0].Type)
		assert.Equal(t, -20, *findings[0].DeviationMinutes)
		assert.Equal(t, ImpactMedium, findings[0].ImpactLevel)
	})

	t.Run("shift within tolerance is ignored", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-1", 8*60+5, 30, date)
		assert.Empty(t, DetectReschedule(before, after))
	})

	t.Run("door change is always medium", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-4", 8*60, 30, date)

		findings := DetectReschedule(before, after)
		require.Len(t, findings, 1)
		f := findings[0]
		assert.Equal(t, TypeDoorChange, f.Type)
		assert.Equal(t, "door-1", *f.PlannedDoor)
		assert.Equal(t, "door-4", *f.RealDoor)
		assert.Equal(t, ImpactMedium, f.ImpactLevel)
	})

	t.Run("duration change is low", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-1", 8*60, 90, date)

		findings := DetectReschedule(before, after)
		require.Len(t, findings, 1)
		assert.Equal(t, TypeDurationChange, findings[0].Type)
		assert.Equal(t, 60, *findings[0].DeviationMinutes)
		assert.Equal(t, ImpactLow, findings[0].ImpactLevel)
	})

	t.Run("one edit can produce several findings", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-2", 8*60+20, 60, date)

		findings := DetectReschedule(before, after)
		require.Len(t, findings, 3)
		assert.Equal(t, TypeDelay, findings[0].Type)
		assert.Equal(t, TypeDoorChange, findings[1].Type)
		assert.Equal(t, TypeDurationChange, findings[2].Type)
	})

	t.Run("unplaced before produces nothing", func(t *testing.T) {
		before := Snapshot{ResourceID: "door-1", StartMinutes: -1}
		after := placedSnapshot("door-2", 8*60, 30, date)
		assert.Nil(t, DetectReschedule(before, after))
	})

	t.Run("different day compares no start times", func(t *testing.T) {
		before := placedSnapshot("door-1", 8*60, 30, date)
		after := placedSnapshot("door-1", 8*60+40, 30, date.AddDate(0, 0, 1))
		assert.Empty(t, DetectReschedule(before, after))
	})
}

func TestDetectRealStart(t *testing.T) {
	planned := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	t.Run("on time within tolerance", func(t *testing.T) {
		assert.Nil(t, DetectRealStart(planned, planned.Add(3*time.Minute)))
		assert.Nil(t, DetectRealStart(planned, planned.Add(-5*time.Minute)))
		assert.Nil(t, DetectRealStart(planned, planned.Add(5*time.Minute)))
	})

	t.Run("seconds past the tolerance are not truncated away", func(t *testing.T) {
		f := DetectRealStart(planned, planned.Add(5*time.Minute+59*time.Second))
		require.NotNil(t, f)
		assert.Equal(t, TypeDelay, f.Type)
		assert.Equal(t, 6, *f.DeviationMinutes)

		f = DetectRealStart(planned, planned.Add(-(5*time.Minute + 30*time.Second)))
		require.NotNil(t, f)
		assert.Equal(t, TypeEarly, f.Type)
		assert.Equal(t, -6, *f.DeviationMinutes)
	})

	t.Run("late arrival", func(t *testing.T) {
		f := DetectRealStart(planned, planned.Add(40*time.Minute))
		require.NotNil(t, f)
		assert.Equal(t, TypeDelay, f.Type)
		assert.Equal(t, 40, *f.DeviationMinutes)
		assert.Equal(t, ImpactHigh, f.ImpactLevel)
	})

	t.Run("early arrival", func(t *testing.T) {
		f := DetectRealStart(planned, planned.Add(-20*time.Minute))
		require.NotNil(t, f)
		assert.Equal(t, TypeEarly, f.Type)
		assert.Equal(t, -20, *f.DeviationMinutes)
		assert.Equal(t, ImpactMedium, f.ImpactLevel)
	})
}

func TestCancellation(t *testing.T) {
	f := Cancellation()
	assert.Equal(t, TypeCancellation, f.Type)
	assert.Equal(t, ImpactCritical, f.ImpactLevel)
}

func TestChangeKeyDeterministic(t *testing.T) {
	a := ChangeKey(7, TypeDelay, "2026-03-02T08:00:00Z")
	b := ChangeKey(7, TypeDelay, "2026-03-02T08:00:00Z")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, ChangeKey(7, TypeEarly, "2026-03-02T08:00:00Z"))
	assert.NotEqual(t, a, ChangeKey(7, TypeDelay, "2026-03-02T09:00:00Z"))
}
