package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const defaultSnapshotKey = "default"

type snapshotRow struct {
	bun.BaseModel `bun:"table:session_snapshots,alias:ss"`

	Key        string    `bun:"key,pk"`
	Credential string    `bun:"credential,notnull"`
	Subject    []byte    `bun:"subject"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// BunStore persists the session snapshot in a single keyed row, so a host
// that already carries a SQLite database can keep the session there too.
type BunStore struct {
	db  *bun.DB
	key string
	now func() time.Time
}

var _ session.Store = (*BunStore)(nil)

// BunOption customizes store construction.
type BunOption func(*BunStore)

// WithSnapshotKey namespaces the stored row, for hosts that keep more than
// one session in the same table.
func WithSnapshotKey(key string) BunOption {
	return func(s *BunStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithBunClock overrides the timestamp source, mainly for tests.
func WithBunClock(now func() time.Time) BunOption {
	return func(s *BunStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBunStore creates a store on an existing bun database handle.
func NewBunStore(db *bun.DB, opts ...BunOption) *BunStore {
	s := &BunStore{
		db:  db,
		key: defaultSnapshotKey,
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// OpenSQLite opens a SQLite database suitable for NewBunStore. Use
// "file::memory:?cache=shared" for an in-memory database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open sqlite database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Init creates the snapshot table when it does not exist yet.
func (s *BunStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*snapshotRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create snapshot table")
	}
	return nil
}

// Load reads the stored snapshot. An absent row means no snapshot and is
// not an error.
func (s *BunStore) Load(ctx context.Context) (*session.Snapshot, error) {
	row := new(snapshotRow)
	err := s.db.NewSelect().
		Model(row).
		Where("key = ?", s.key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load session snapshot")
	}

	snapshot := &session.Snapshot{Credential: row.Credential}
	if len(row.Subject) > 0 {
		var subject session.Identity
		if err := json.Unmarshal(row.Subject, &subject); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode session subject")
		}
		snapshot.Subject = &subject
	}

	return snapshot, nil
}

// Save upserts the snapshot row.
func (s *BunStore) Save(ctx context.Context, snapshot *session.Snapshot) error {
	if snapshot == nil {
		return s.Clear(ctx)
	}

	var subject []byte
	if snapshot.Subject != nil {
		data, err := json.Marshal(snapshot.Subject)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session subject")
		}
		subject = data
	}

	row := &snapshotRow{
		Key:        s.key,
		Credential: snapshot.Credential,
		Subject:    subject,
		UpdatedAt:  s.now(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("credential = EXCLUDED.credential").
		Set("subject = EXCLUDED.subject").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store session snapshot")
	}

	return nil
}

// Clear deletes the snapshot row. Deleting an absent row is a no-op.
func (s *BunStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*snapshotRow)(nil)).
		Where("key = ?", s.key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session snapshot")
	}
	return nil
}
