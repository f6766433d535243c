package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t     *testing.T
	now   time.Time
	store *engine.MemStore
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t}
	store, err := engine.NewMemStore(engine.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.store = store
	return f
}

func (f *fixture) create(name string, status schema.Status, at time.Time) {
	f.t.Helper()
	f.now = at
	_, err := f.store.Insert(context.Background(), schema.StateRecord{
		Name: name, Description: "d", Status: status, CreatedBy: "alice",
	})
	require.NoError(f.t, err)
}

func (f *fixture) update(name string, status schema.Status, at time.Time) {
	f.t.Helper()
	f.now = at
	_, err := f.store.UpdateStatus(context.Background(), name, status)
	require.NoError(f.t, err)
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

type failingAggregator struct{}

func (failingAggregator) Aggregate(context.Context, engine.Pipeline) ([]engine.Row, error) {
	return nil, errors.New("store unavailable")
}

func TestBuildSummary_Empty(t *testing.T) {
	f := newFixture(t)
	sum, err := New(f.store).BuildSummary(context.Background(), 3, Daily)
	require.NoError(t, err)

	assert.Zero(t, sum.TotalCount)
	assert.Zero(t, sum.SuccessRate)
	assert.Zero(t, sum.CancellationRate)
	assert.Empty(t, sum.StatusRates)
	assert.Empty(t, sum.FrequencyData)
	assert.Empty(t, sum.TopPeakHours)
}

func TestStatusDistribution(t *testing.T) {
	f := newFixture(t)
	f.create("a", schema.StatusCompleted, at(5, 9, 0))
	f.create("b", schema.StatusCompleted, at(5, 9, 0))
	f.create("c", schema.StatusCancelled, at(5, 9, 0))
	f.create("d", schema.StatusIdle, at(5, 9, 0))

	dist, err := New(f.store).StatusDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, dist.TotalCount)
	assert.InDelta(t, 50.0, dist.SuccessRate, 1e-9)
	assert.InDelta(t, 25.0, dist.CancellationRate, 1e-9)

	require.Len(t, dist.StatusRates, 3)
	var sum float64
	for i, want := range []schema.Status{schema.StatusCancelled, schema.StatusCompleted, schema.StatusIdle} {
		assert.Equal(t, want, dist.StatusRates[i].Status)
		sum += dist.StatusRates[i].Rate
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestStatusDistribution_NoCompleted(t *testing.T) {
	f := newFixture(t)
	f.create("a", schema.StatusActive, at(5, 9, 0))
	f.create("b", schema.StatusOnHold, at(5, 9, 0))
	f.create("c", schema.StatusResume, at(5, 9, 0))

	dist, err := New(f.store).StatusDistribution(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dist.SuccessRate)
	assert.Zero(t, dist.CancellationRate)

	var sum float64
	for _, r := range dist.StatusRates {
		sum += r.Rate
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestActivityFrequency_DailyCollapse(t *testing.T) {
	f := newFixture(t)
	f.create("a", schema.StatusIdle, at(5, 10, 0))
	f.create("b", schema.StatusIdle, at(5, 11, 0))

	freq, err := New(f.store).ActivityFrequency(context.Background(), Daily)
	require.NoError(t, err)
	assert.Equal(t, []schema.FrequencyBucket{
		{Interval: "2024-03-05", CreationCount: 2, UpdateCount: 0, TotalCount: 2},
	}, freq)
}

func TestActivityFrequency_UpdatesBucketedByUpdateTime(t *testing.T) {
	f := newFixture(t)
	f.create("a", schema.StatusIdle, at(5, 10, 0))
	f.create("b", schema.StatusIdle, at(5, 11, 0))
	f.update("a", schema.StatusActive, at(7, 8, 0))

	freq, err := New(f.store).ActivityFrequency(context.Background(), "weekly")
	require.NoError(t, err, "unknown intervals fall back to daily")
	assert.Equal(t, []schema.FrequencyBucket{
		{Interval: "2024-03-05", CreationCount: 2, TotalCount: 2},
		{Interval: "2024-03-07", UpdateCount: 1, TotalCount: 1},
	}, freq)

	monthly, err := New(f.store).ActivityFrequency(context.Background(), Monthly)
	require.NoError(t, err)
	assert.Equal(t, []schema.FrequencyBucket{
		{Interval: "2024-03", CreationCount: 2, UpdateCount: 1, TotalCount: 3},
	}, monthly)
}

func TestCreateThenUpdateInSameHour(t *testing.T) {
	f := newFixture(t)
	f.create("job1", schema.StatusIdle, at(5, 14, 5))
	f.update("job1", schema.StatusActive, at(5, 14, 40))

	eng := New(f.store)
	hourly, err := eng.ActivityFrequency(context.Background(), Hourly)
	require.NoError(t, err)
	assert.Equal(t, []schema.FrequencyBucket{
		{Interval: "2024-03-05 14", CreationCount: 1, UpdateCount: 1, TotalCount: 2},
	}, hourly)

	peaks, err := eng.TopPeakHours(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []schema.PeakHour{
		{Date: "2024-03-05", Hour: 14, RequestCount: 2, Time: "14:00 - 15:00"},
	}, peaks)
}

func TestTopPeakHours_TopThreeOfFive(t *testing.T) {
	f := newFixture(t)
	// Five distinct slots with 5, 4, 3, 2 and 1 records.
	slots := []struct {
		hour  int
		count int
	}{{14, 5}, {9, 1}, {23, 4}, {0, 2}, {7, 3}}
	i := 0
	for _, s := range slots {
		for c := 0; c < s.count; c++ {
			i++
			f.create(string(rune('a'+i)), schema.StatusIdle, at(5, s.hour, c))
		}
	}

	peaks, err := New(f.store).TopPeakHours(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []schema.PeakHour{
		{Date: "2024-03-05", Hour: 14, RequestCount: 5, Time: "14:00 - 15:00"},
		{Date: "2024-03-05", Hour: 23, RequestCount: 4, Time: "23:00 - 24:00"},
		{Date: "2024-03-05", Hour: 7, RequestCount: 3, Time: "07:00 - 08:00"},
	}, peaks)
}

func TestTopPeakHours_DefaultN(t *testing.T) {
	f := newFixture(t)
	for h := 0; h < 5; h++ {
		f.create(string(rune('a'+h)), schema.StatusIdle, at(5, h, 0))
	}
	peaks, err := New(f.store).TopPeakHours(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, peaks, DefaultTopN)
}

func TestBuildSummary_Combines(t *testing.T) {
	f := newFixture(t)
	f.create("job1", schema.StatusIdle, at(5, 10, 0))
	f.create("job2", schema.StatusIdle, at(5, 11, 0))
	f.update("job1", schema.StatusCompleted, at(5, 11, 30))

	sum, err := New(f.store).BuildSummary(context.Background(), 1, Daily)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalCount)
	assert.InDelta(t, 50.0, sum.SuccessRate, 1e-9)
	assert.Equal(t, []schema.FrequencyBucket{
		{Interval: "2024-03-05", CreationCount: 2, UpdateCount: 1, TotalCount: 3},
	}, sum.FrequencyData)
	assert.Equal(t, []schema.PeakHour{
		{Date: "2024-03-05", Hour: 11, RequestCount: 2, Time: "11:00 - 12:00"},
	}, sum.TopPeakHours)
}

func TestBuildSummary_FailureAbortsEverything(t *testing.T) {
	_, err := New(failingAggregator{}).BuildSummary(context.Background(), 3, Daily)
	assert.ErrorContains(t, err, "store unavailable")
}

func TestHourRange(t *testing.T) {
	assert.Equal(t, "00:00 - 01:00", HourRange(0))
	assert.Equal(t, "09:00 - 10:00", HourRange(9))
	assert.Equal(t, "23:00 - 24:00", HourRange(23))
}

func TestParseParams(t *testing.T) {
	assert.Equal(t, Hourly, ParseInterval("hourly"))
	assert.Equal(t, Monthly, ParseInterval("monthly"))
	assert.Equal(t, Daily, ParseInterval(""))
	assert.Equal(t, Daily, ParseInterval("yearly"))

	assert.Equal(t, 5, ParseTopN("5"))
	assert.Equal(t, DefaultTopN, ParseTopN(""))
	assert.Equal(t, DefaultTopN, ParseTopN("abc"))
	assert.Equal(t, DefaultTopN, ParseTopN("-2"))
}
