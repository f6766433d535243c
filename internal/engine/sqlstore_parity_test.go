package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresDSNEnv points the parity tests at a scratch database. Its states
// and users tables are emptied.
const postgresDSNEnv = "ROBOTOPS_TEST_POSTGRES_DSN"

func openTestSQLStore(t *testing.T, clock *fakeClock) *SQLStore {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	s.now = clock.Now

	wipe := func() {
		require.NoError(t, s.db.Exec("DELETE FROM states").Error)
		require.NoError(t, s.db.Exec("DELETE FROM users").Error)
	}
	wipe()
	t.Cleanup(func() {
		wipe()
		s.Close()
	})
	return s
}

type storeOp func(t *testing.T, ctx context.Context, s Store, clock *fakeClock)

func insertAt(name string, at time.Time) storeOp {
	return func(t *testing.T, ctx context.Context, s Store, clock *fakeClock) {
		clock.Set(at)
		_, err := s.Insert(ctx, job(name))
		require.NoError(t, err)
	}
}

func updateAt(name string, status schema.Status, at time.Time) storeOp {
	return func(t *testing.T, ctx context.Context, s Store, clock *fakeClock) {
		clock.Set(at)
		_, err := s.UpdateStatus(ctx, name, status)
		require.NoError(t, err)
	}
}

func TestSQLStore_AggregateMatchesMemStore(t *testing.T) {
	day := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, time.UTC) }
	ops := []storeOp{
		insertAt("a", day(5, 8, 0)),
		insertAt("b", day(5, 9, 0)),
		insertAt("c", day(5, 9, 30)),
		insertAt("d", day(6, 8, 0)),
		insertAt("e", day(6, 23, 59)),
		updateAt("a", schema.StatusActive, day(5, 14, 30)),
		updateAt("b", schema.StatusCompleted, day(5, 14, 45)),
		updateAt("c", schema.StatusIdle, day(7, 1, 0)),
		updateAt("d", schema.StatusCancelled, day(28, 10, 0)),
	}

	pipelines := map[string]Pipeline{
		"status":           {GroupBy: []Dimension{{Field: FieldStatus}}},
		"created by day":   {GroupBy: []Dimension{{Field: FieldCreatedAt, Truncate: TruncDay}}},
		"created by month": {GroupBy: []Dimension{{Field: FieldCreatedAt, Truncate: TruncMonth}}},
		"updated by hour, modified only": {
			GroupBy:      []Dimension{{Field: FieldUpdatedAt, Truncate: TruncHour}},
			ModifiedOnly: true,
		},
		"peak slots with limit": {
			GroupBy: []Dimension{
				{Field: FieldCreatedAt, Truncate: TruncDay},
				{Field: FieldCreatedAt, Truncate: TruncHourOfDay},
			},
			Sort:  SortCountDesc,
			Limit: 2,
		},
		"updated peak slots": {
			GroupBy: []Dimension{
				{Field: FieldUpdatedAt, Truncate: TruncDay},
				{Field: FieldUpdatedAt, Truncate: TruncHourOfDay},
			},
			ModifiedOnly: true,
			Sort:         SortCountDesc,
		},
	}

	ctx := context.Background()
	sqlClock := newFakeClock(time.Time{})
	sqlStore := openTestSQLStore(t, sqlClock)
	memClock := newFakeClock(time.Time{})
	memStore := newTestStore(t, WithClock(memClock.Now))

	for name, p := range pipelines {
		t.Run(name+" on empty stores", func(t *testing.T) {
			want, err := memStore.Aggregate(ctx, p)
			require.NoError(t, err)
			got, err := sqlStore.Aggregate(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, op := range ops {
		op(t, ctx, memStore, memClock)
		op(t, ctx, sqlStore, sqlClock)
	}

	for name, p := range pipelines {
		t.Run(name, func(t *testing.T) {
			want, err := memStore.Aggregate(ctx, p)
			require.NoError(t, err)
			require.NotEmpty(t, want)
			got, err := sqlStore.Aggregate(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSQLStore_UpdateStatusMatchesMemStore(t *testing.T) {
	ctx := context.Background()
	sqlClock := newFakeClock(time.Time{})
	sqlStore := openTestSQLStore(t, sqlClock)
	memClock := newFakeClock(time.Time{})
	memStore := newTestStore(t, WithClock(memClock.Now))

	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	for _, op := range []storeOp{
		insertAt("a", created),
		updateAt("a", schema.StatusIdle, created.Add(time.Hour)),
	} {
		op(t, ctx, memStore, memClock)
		op(t, ctx, sqlStore, sqlClock)
	}

	want, err := memStore.FindByName(ctx, "a")
	require.NoError(t, err)
	got, err := sqlStore.FindByName(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want.UpdatedAt, got.UpdatedAt, "a same-status update leaves updatedAt alone")
	assert.Equal(t, want.Status, got.Status)
}
