// Package report computes the analytical summary over the state records:
// status distribution, activity frequency and peak hours.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Interval is the bucket size of the activity frequency.
type Interval string

const (
	Hourly  Interval = "hourly"
	Daily   Interval = "daily"
	Monthly Interval = "monthly"
)

// DefaultTopN is the number of peak hours returned when the caller gives none.
const DefaultTopN = 3

var intervalTruncation = map[Interval]engine.Truncation{
	Hourly:  engine.TruncHour,
	Daily:   engine.TruncDay,
	Monthly: engine.TruncMonth,
}

// ParseInterval maps a query value to an Interval; anything unknown is Daily.
func ParseInterval(s string) Interval {
	if _, ok := intervalTruncation[Interval(s)]; ok {
		return Interval(s)
	}
	return Daily
}

// ParseTopN parses the peak-hour count; missing or non-positive values give DefaultTopN.
func ParseTopN(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultTopN
	}
	return n
}

// StatusDistribution is the result of grouping records by status.
type StatusDistribution struct {
	TotalCount       int
	SuccessRate      float64
	CancellationRate float64
	StatusRates      []schema.StatusRate
}

// Engine runs the report queries against an aggregator.
type Engine struct {
	store engine.Aggregator
}

func New(store engine.Aggregator) *Engine {
	return &Engine{store: store}
}

// BuildSummary runs the three reports concurrently and combines them. Any
// failure fails the whole summary.
func (e *Engine) BuildSummary(ctx context.Context, n int, interval Interval) (schema.Summary, error) {
	var (
		dist  StatusDistribution
		freq  []schema.FrequencyBucket
		peaks []schema.PeakHour
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dist, err = e.StatusDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		freq, err = e.ActivityFrequency(gctx, interval)
		return err
	})
	g.Go(func() (err error) {
		peaks, err = e.TopPeakHours(gctx, n)
		return err
	})
	if err := g.Wait(); err != nil {
		return schema.Summary{}, err
	}

	return schema.Summary{
		TotalCount:       dist.TotalCount,
		SuccessRate:      dist.SuccessRate,
		CancellationRate: dist.CancellationRate,
		StatusRates:      dist.StatusRates,
		FrequencyData:    freq,
		TopPeakHours:     peaks,
	}, nil
}

// StatusDistribution counts records per status and derives the rates.
func (e *Engine) StatusDistribution(ctx context.Context) (StatusDistribution, error) {
	rows, err := e.store.Aggregate(ctx, engine.Pipeline{
		GroupBy: []engine.Dimension{{Field: engine.FieldStatus}},
		Sort:    engine.SortKeyAsc,
	})
	if err != nil {
		return StatusDistribution{}, errors.Wrap(err, "status distribution")
	}

	var dist StatusDistribution
	counts := make(map[schema.Status]int, len(rows))
	for _, row := range rows {
		counts[schema.Status(row.Keys[0])] = row.Count
		dist.TotalCount += row.Count
	}
	dist.SuccessRate = percent(counts[schema.StatusCompleted], dist.TotalCount)
	dist.CancellationRate = percent(counts[schema.StatusCancelled], dist.TotalCount)
	dist.StatusRates = make([]schema.StatusRate, 0, len(rows))
	for _, row := range rows {
		dist.StatusRates = append(dist.StatusRates, schema.StatusRate{
			Status: schema.Status(row.Keys[0]),
			Rate:   percent(row.Count, dist.TotalCount),
		})
	}
	return dist, nil
}

// ActivityFrequency counts creations and real updates per time bucket. An
// update is only counted when the record changed after it was created.
func (e *Engine) ActivityFrequency(ctx context.Context, interval Interval) ([]schema.FrequencyBucket, error) {
	trunc := intervalTruncation[ParseInterval(string(interval))]

	created, err := e.store.Aggregate(ctx, engine.Pipeline{
		GroupBy: []engine.Dimension{{Field: engine.FieldCreatedAt, Truncate: trunc}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creation frequency")
	}
	updated, err := e.store.Aggregate(ctx, engine.Pipeline{
		GroupBy:      []engine.Dimension{{Field: engine.FieldUpdatedAt, Truncate: trunc}},
		ModifiedOnly: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "update frequency")
	}

	buckets := make(map[string]*schema.FrequencyBucket)
	bucket := func(label string) *schema.FrequencyBucket {
		b, ok := buckets[label]
		if !ok {
			b = &schema.FrequencyBucket{Interval: label}
			buckets[label] = b
		}
		return b
	}
	for _, row := range created {
		bucket(row.Keys[0]).CreationCount += row.Count
	}
	for _, row := range updated {
		bucket(row.Keys[0]).UpdateCount += row.Count
	}

	out := make([]schema.FrequencyBucket, 0, len(buckets))
	for _, b := range buckets {
		b.TotalCount = b.CreationCount + b.UpdateCount
		out = append(out, *b)
	}
	// Labels are zero-padded and most significant first, so string order is time order.
	sort.Slice(out, func(i, j int) bool { return out[i].Interval < out[j].Interval })
	return out, nil
}

type slot struct {
	date string
	hour string
}

// TopPeakHours returns the n busiest (date, hour) slots, counting creations
// and real updates in the same slot together.
func (e *Engine) TopPeakHours(ctx context.Context, n int) ([]schema.PeakHour, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	counts := make(map[slot]int)
	for _, field := range []engine.Field{engine.FieldCreatedAt, engine.FieldUpdatedAt} {
		rows, err := e.store.Aggregate(ctx, engine.Pipeline{
			GroupBy: []engine.Dimension{
				{Field: field, Truncate: engine.TruncDay},
				{Field: field, Truncate: engine.TruncHourOfDay},
			},
			ModifiedOnly: field == engine.FieldUpdatedAt,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "peak hours by %s", field)
		}
		for _, row := range rows {
			counts[slot{date: row.Keys[0], hour: row.Keys[1]}] += row.Count
		}
	}

	slots := make([]slot, 0, len(counts))
	for s := range counts {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if a.date != b.date {
			return a.date < b.date
		}
		return a.hour < b.hour
	})
	if len(slots) > n {
		slots = slots[:n]
	}

	out := make([]schema.PeakHour, 0, len(slots))
	for _, s := range slots {
		hour, err := strconv.Atoi(s.hour)
		if err != nil {
			return nil, errors.Wrapf(err, "hour key %q", s.hour)
		}
		out = append(out, schema.PeakHour{
			Date:         s.date,
			Hour:         hour,
			RequestCount: counts[s],
			Time:         HourRange(hour),
		})
	}
	return out, nil
}

// HourRange labels the hour starting at hour, e.g. "14:00 - 15:00". Hour 23
// ends at "24:00".
func HourRange(hour int) string {
	return fmt.Sprintf("%02d:00 - %02d:00", hour, hour+1)
}

func percent(count, total int) float64 {
	if total == 0 || count == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
