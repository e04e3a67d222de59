package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"authgate/internal/auth"
)

// PostgresStore persists sessions in the sessions table. Session IDs are
// stored keyed-hashed so a database dump does not contain usable cookies.
type PostgresStore struct {
	db     *sqlx.DB
	secret string
	ttl    time.Duration
}

// NewPostgresStore creates a store backed by the given database.
func NewPostgresStore(db *sqlx.DB, secret string, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, secret: secret, ttl: ttl}
}

type sessionRow struct {
	ID                 uuid.UUID    `db:"id"`
	TokenHash          string       `db:"token_hash"`
	Identity           []byte       `db:"identity"`
	PendingState       string       `db:"pending_state"`
	PendingStateExpiry sql.NullTime `db:"pending_state_expires_at"`
	CreatedAt          time.Time    `db:"created_at"`
	ExpiresAt          time.Time    `db:"expires_at"`
}

func (r sessionRow) toSession(id string) (*Session, error) {
	s := &Session{
		ID:           id,
		RecordID:     r.ID,
		PendingState: r.PendingState,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
	}
	if r.PendingStateExpiry.Valid {
		s.PendingStateExpiry = r.PendingStateExpiry.Time
	}
	if len(r.Identity) > 0 {
		var identity auth.Identity
		if err := json.Unmarshal(r.Identity, &identity); err != nil {
			return nil, fmt.Errorf("session: decode identity: %w", err)
		}
		s.Identity = &identity
	}
	return s, nil
}

// Create inserts a fresh anonymous session.
func (p *PostgresStore) Create(ctx context.Context) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:        id,
		RecordID:  uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}

	const query = `
		INSERT INTO sessions (id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := p.db.ExecContext(ctx, query, s.RecordID, hashID(p.secret, id), s.CreatedAt, s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("session: insert: %w", err)
	}

	return s, nil
}

// Load returns the session for id, or nil when absent or expired.
func (p *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	const query = `
		SELECT id, token_hash, identity, pending_state, pending_state_expires_at, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > now()
	`

	var row sessionRow
	if err := p.db.GetContext(ctx, &row, query, hashID(p.secret, id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}

	return row.toSession(id)
}

// Save overwrites the record and slides its expiry.
func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	var identity []byte
	if s.Identity != nil {
		data, err := json.Marshal(s.Identity)
		if err != nil {
			return fmt.Errorf("session: encode identity: %w", err)
		}
		identity = data
	}

	var stateExpiry sql.NullTime
	if !s.PendingStateExpiry.IsZero() {
		stateExpiry = sql.NullTime{Time: s.PendingStateExpiry, Valid: true}
	}

	s.ExpiresAt = time.Now().Add(p.ttl)

	const query = `
		UPDATE sessions
		SET identity = $2, pending_state = $3, pending_state_expires_at = $4, expires_at = $5
		WHERE token_hash = $1
	`
	if _, err := p.db.ExecContext(ctx, query, hashID(p.secret, s.ID), identity, s.PendingState, stateExpiry, s.ExpiresAt); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	return nil
}

// Destroy removes the record; absent rows are a no-op.
func (p *PostgresStore) Destroy(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashID(p.secret, id)); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and reports how many went.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("session: delete expired: %w", err)
	}
	return result.RowsAffected()
}
