package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MemStore is a thread-safe in-memory Store with optional write-behind persistence.
type MemStore struct {
	mu     sync.RWMutex
	states map[string]schema.StateRecord // by name
	users  map[string]storedUser         // by email
	seq    map[string]uint64             // snapshot sequence per collection, guarded by mu

	persister Persister
	persistMu sync.Mutex
	written   map[string]uint64 // last sequence written per collection, guarded by persistMu
	wg        sync.WaitGroup

	now func() time.Time
	log *logrus.Entry
}

// storedUser is the persisted form of an account; unlike UserAccount it keeps the hash.
type storedUser struct {
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"passwordHash"`
	Access       schema.Access `json:"access"`
	ID           string        `json:"id"`
}

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithPersister makes the store load from p and save every change to it.
func WithPersister(p Persister) MemOption {
	return func(m *MemStore) {
		m.persister = p
	}
}

// WithClock replaces the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) MemOption {
	return func(m *MemStore) {
		m.now = now
	}
}

// NewMemStore initializes a store, loading existing data from the persister if one is set.
// The store owns the persister: Close closes it, and so does a failed load.
func NewMemStore(opts ...MemOption) (*MemStore, error) {
	m := &MemStore{
		states:  make(map[string]schema.StateRecord),
		users:   make(map[string]storedUser),
		seq:     make(map[string]uint64),
		written: make(map[string]uint64),
		now:     systemClock,
		log:     logrus.WithField("component", "memstore"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.persister == nil {
		return m, nil
	}
	if err := m.load(); err != nil {
		if cerr := m.persister.Close(); cerr != nil {
			m.log.WithError(cerr).Warn("error closing persister after failed load")
		}
		return nil, err
	}
	return m, nil
}

func (m *MemStore) load() error {
	states, err := m.persister.LoadCollection(CollectionStates)
	if err != nil {
		return err
	}
	for id, doc := range states {
		var rec schema.StateRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			m.log.WithError(err).Warnf("skipping unreadable state %q", id)
			continue
		}
		m.states[rec.Name] = rec
	}

	users, err := m.persister.LoadCollection(CollectionUsers)
	if err != nil {
		return err
	}
	for id, doc := range users {
		var u storedUser
		if err := json.Unmarshal(doc, &u); err != nil {
			m.log.WithError(err).Warnf("skipping unreadable user %q", id)
			continue
		}
		m.users[u.Email] = u
	}
	m.log.Infof("loaded %d states and %d users", len(m.states), len(m.users))
	return nil
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Close drains pending writes and closes the persister.
func (m *MemStore) Close() error {
	m.Wait()
	if m.persister != nil {
		return m.persister.Close()
	}
	return nil
}

// --- Records ---

func (m *MemStore) Insert(_ context.Context, rec schema.StateRecord) (schema.StateRecord, error) {
	rec, err := prepareInsert(rec, m.now())
	if err != nil {
		return schema.StateRecord{}, err
	}

	m.mu.Lock()
	if _, exists := m.states[rec.Name]; exists {
		m.mu.Unlock()
		return schema.StateRecord{}, errors.Wrapf(ErrDuplicateName, "%q", rec.Name)
	}
	m.states[rec.Name] = rec
	m.persistLocked(CollectionStates)
	m.mu.Unlock()
	return rec, nil
}

func (m *MemStore) FindByName(_ context.Context, name string) (schema.StateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.states[strings.TrimSpace(name)]
	if !ok {
		return schema.StateRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemStore) FindAll(_ context.Context) ([]schema.StateRecord, error) {
	m.mu.RLock()
	list := make([]schema.StateRecord, 0, len(m.states))
	for _, rec := range m.states {
		list = append(list, rec)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (m *MemStore) UpdateStatus(_ context.Context, name string, status schema.Status) (schema.StateRecord, error) {
	if !status.Valid() {
		return schema.StateRecord{}, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.states[strings.TrimSpace(name)]
	if !ok {
		return schema.StateRecord{}, ErrNotFound
	}
	if rec.Status == status {
		return rec, nil
	}
	rec.Status = status
	rec.UpdatedAt = touch(rec.CreatedAt, m.now())
	m.states[rec.Name] = rec
	m.persistLocked(CollectionStates)
	return rec, nil
}

func (m *MemStore) DeleteByName(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	if _, ok := m.states[name]; !ok {
		return ErrNotFound
	}
	delete(m.states, name)
	m.persistLocked(CollectionStates)
	return nil
}

// Aggregate evaluates p over a consistent view of the records.
func (m *MemStore) Aggregate(ctx context.Context, p Pipeline) ([]Row, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	recs := make([]schema.StateRecord, 0, len(m.states))
	for _, rec := range m.states {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	return evaluate(p, recs), nil
}

// --- Users ---

func (m *MemStore) CreateUser(_ context.Context, u schema.UserAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[u.Email]; exists {
		return errors.Wrapf(ErrDuplicateUser, "email %q", u.Email)
	}
	for _, other := range m.users {
		if other.Name == u.Name {
			return errors.Wrapf(ErrDuplicateUser, "name %q", u.Name)
		}
	}
	m.users[u.Email] = storedUser(u)
	m.persistLocked(CollectionUsers)
	return nil
}

func (m *MemStore) FindUserByEmail(_ context.Context, email string) (schema.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[email]
	if !ok {
		return schema.UserAccount{}, ErrUserNotFound
	}
	return schema.UserAccount(u), nil
}

func (m *MemStore) SetAccess(_ context.Context, email string, access schema.Access) (schema.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return schema.UserAccount{}, ErrUserNotFound
	}
	if u.Access != access {
		u.Access = access
		m.users[email] = u
		m.persistLocked(CollectionUsers)
	}
	return schema.UserAccount(u), nil
}

func (m *MemStore) DeleteUser(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[email]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, email)
	m.persistLocked(CollectionUsers)
	return nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]schema.UserAccount, error) {
	m.mu.RLock()
	list := make([]schema.UserAccount, 0, len(m.users))
	for _, u := range m.users {
		list = append(list, schema.UserAccount(u))
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list, nil
}

// --- Persistence ---

// persistLocked snapshots a collection and saves it in the background.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked(collection string) {
	if m.persister == nil {
		return
	}
	m.seq[collection]++
	seq := m.seq[collection]
	docs, err := m.snapshotLocked(collection)
	if err != nil {
		m.log.WithError(err).Errorf("snapshot of %s failed", collection)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persistMu.Lock()
		defer m.persistMu.Unlock()

		// A newer snapshot already reached the persister.
		if seq <= m.written[collection] {
			return
		}
		if err := m.persister.SaveCollection(collection, docs); err != nil {
			m.log.WithError(err).Errorf("saving %s failed", collection)
			return
		}
		m.written[collection] = seq
	}()
}

func (m *MemStore) snapshotLocked(collection string) (map[string]json.RawMessage, error) {
	docs := make(map[string]json.RawMessage)
	switch collection {
	case CollectionStates:
		for name, rec := range m.states {
			raw, err := json.Marshal(rec)
			if err != nil {
				return nil, err
			}
			docs[name] = raw
		}
	case CollectionUsers:
		for email, u := range m.users {
			raw, err := json.Marshal(u)
			if err != nil {
				return nil, err
			}
			docs[email] = raw
		}
	}
	return docs, nil
}
