package engine

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCompilePipeline_Status(t *testing.T) {
	q, err := compilePipeline(Pipeline{GroupBy: []Dimension{{Field: FieldStatus}}})
	require.NoError(t, err)
	assert.Equal(t, "status AS k0, COUNT(*) AS total", q.selects)
	assert.Equal(t, "k0", q.group)
	assert.Equal(t, "k0", q.order)
	assert.Empty(t, q.where)
}

func TestCompilePipeline_PeakSlots(t *testing.T) {
	q, err := compilePipeline(Pipeline{
		GroupBy: []Dimension{
			{Field: FieldUpdatedAt, Truncate: TruncDay},
			{Field: FieldUpdatedAt, Truncate: TruncHourOfDay},
		},
		ModifiedOnly: true,
		Sort:         SortCountDesc,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS k0, "+
			"to_char(updated_at AT TIME ZONE 'UTC', 'HH24') AS k1, COUNT(*) AS total",
		q.selects)
	assert.Equal(t, "k0, k1", q.group)
	assert.Equal(t, "total DESC, k0, k1", q.order)
	assert.Equal(t, "updated_at <> created_at", q.where)
}

func TestCompilePipeline_Invalid(t *testing.T) {
	_, err := compilePipeline(Pipeline{})
	assert.ErrorIs(t, err, ErrInvalidPipeline)
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgErrUniqueViolation}
	assert.True(t, isUniqueViolation(errors.Wrap(pgErr, "insert")))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
