package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgreSQL unique_violation, class 23.
const pgErrUniqueViolation = "23505"

// to_char patterns matching truncLayouts.
var sqlTruncFormats = map[Truncation]string{
	TruncHour:      "YYYY-MM-DD HH24",
	TruncDay:       "YYYY-MM-DD",
	TruncMonth:     "YYYY-MM",
	TruncHourOfDay: "HH24",
}

var sqlColumns = map[Field]string{
	FieldStatus:    "status",
	FieldCreatedAt: "created_at",
	FieldUpdatedAt: "updated_at",
}

// SQLStore is a Store backed by PostgreSQL through gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm handle and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&schema.StateRecord{}, &schema.UserAccount{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	logrus.WithField("component", "sqlstore").Info("database migration completed")
	return &SQLStore{db: db, now: systemClock}, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Insert(ctx context.Context, rec schema.StateRecord) (schema.StateRecord, error) {
	rec, err := prepareInsert(rec, s.now())
	if err != nil {
		return schema.StateRecord{}, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return schema.StateRecord{}, errors.Wrapf(ErrDuplicateName, "%q", rec.Name)
		}
		return schema.StateRecord{}, errors.Wrap(err, "insert state")
	}
	return rec, nil
}

func (s *SQLStore) FindByName(ctx context.Context, name string) (schema.StateRecord, error) {
	var rec schema.StateRecord
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.StateRecord{}, ErrNotFound
	}
	if err != nil {
		return schema.StateRecord{}, errors.Wrap(err, "find state")
	}
	return utcRecord(rec), nil
}

func (s *SQLStore) FindAll(ctx context.Context) ([]schema.StateRecord, error) {
	var recs []schema.StateRecord
	if err := s.db.WithContext(ctx).Order("created_at, name").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "list states")
	}
	for i := range recs {
		recs[i] = utcRecord(recs[i])
	}
	return recs, nil
}

// UpdateStatus changes the status in a single statement; a matching status
// leaves the row and its updated_at alone.
func (s *SQLStore) UpdateStatus(ctx context.Context, name string, status schema.Status) (schema.StateRecord, error) {
	if !status.Valid() {
		return schema.StateRecord{}, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	name = strings.TrimSpace(name)
	err := s.db.WithContext(ctx).Model(&schema.StateRecord{}).
		Where("name = ? AND status <> ?", name, string(status)).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": gorm.Expr("GREATEST(?, created_at + interval '1 microsecond')", s.now()),
		}).Error
	if err != nil {
		return schema.StateRecord{}, errors.Wrap(err, "update state")
	}
	return s.FindByName(ctx, name)
}

func (s *SQLStore) DeleteByName(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Delete(&schema.StateRecord{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete state")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Aggregate compiles p to a GROUP BY query.
func (s *SQLStore) Aggregate(ctx context.Context, p Pipeline) ([]Row, error) {
	q, err := compilePipeline(p)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&schema.StateRecord{}).
		Select(q.selects).
		Group(q.group).
		Order(q.order)
	if q.where != "" {
		tx = tx.Where(q.where)
	}
	if p.Limit > 0 {
		tx = tx.Limit(p.Limit)
	}

	rows, err := tx.Rows()
	if err != nil {
		return nil, errors.Wrap(err, "aggregate states")
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		keys := make([]string, len(p.GroupBy))
		dest := make([]any, 0, len(keys)+1)
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		var total int64
		dest = append(dest, &total)
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scan aggregate row")
		}
		out = append(out, Row{Keys: keys, Count: int(total)})
	}
	return out, errors.Wrap(rows.Err(), "read aggregate rows")
}

// --- Users ---

func (s *SQLStore) CreateUser(ctx context.Context, u schema.UserAccount) error {
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateUser, "%q", u.Email)
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (s *SQLStore) FindUserByEmail(ctx context.Context, email string) (schema.UserAccount, error) {
	var u schema.UserAccount
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.UserAccount{}, ErrUserNotFound
	}
	if err != nil {
		return schema.UserAccount{}, errors.Wrap(err, "find user")
	}
	return u, nil
}

func (s *SQLStore) SetAccess(ctx context.Context, email string, access schema.Access) (schema.UserAccount, error) {
	res := s.db.WithContext(ctx).Model(&schema.UserAccount{}).Where("email = ?", email).Update("access", string(access))
	if res.Error != nil {
		return schema.UserAccount{}, errors.Wrap(res.Error, "update user access")
	}
	if res.RowsAffected == 0 {
		return schema.UserAccount{}, ErrUserNotFound
	}
	return s.FindUserByEmail(ctx, email)
}

func (s *SQLStore) DeleteUser(ctx context.Context, email string) error {
	res := s.db.WithContext(ctx).Where("email = ?", email).Delete(&schema.UserAccount{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete user")
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]schema.UserAccount, error) {
	var users []schema.UserAccount
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// --- SQL helpers ---

type compiledQuery struct {
	selects string
	group   string
	order   string
	where   string
}

func compilePipeline(p Pipeline) (compiledQuery, error) {
	if err := p.Validate(); err != nil {
		return compiledQuery{}, err
	}

	var q compiledQuery
	selects := make([]string, 0, len(p.GroupBy)+1)
	aliases := make([]string, 0, len(p.GroupBy))
	for i, d := range p.GroupBy {
		alias := fmt.Sprintf("k%d", i)
		selects = append(selects, sqlExpr(d)+" AS "+alias)
		aliases = append(aliases, alias)
	}
	selects = append(selects, "COUNT(*) AS total")

	q.selects = strings.Join(selects, ", ")
	q.group = strings.Join(aliases, ", ")
	q.order = q.group
	if p.Sort == SortCountDesc {
		q.order = "total DESC, " + q.group
	}
	if p.ModifiedOnly {
		q.where = "updated_at <> created_at"
	}
	return q, nil
}

func sqlExpr(d Dimension) string {
	col := sqlColumns[d.Field]
	if d.Truncate == TruncNone {
		return col
	}
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', '%s')", col, sqlTruncFormats[d.Truncate])
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

func utcRecord(rec schema.StateRecord) schema.StateRecord {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec
}
