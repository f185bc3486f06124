package trust

import (
	"context"
	"database/sql"
	"fmt"
)

// settingsStore abstracts the DB queries for testability.
type settingsStore interface {
	FetchRow(ctx context.Context, userID string) (*settingsRow, error)
	SaveRow(ctx context.Context, userID string, row *settingsRow) error
}

type settingsRow struct {
	Navigation   string
	ContentRead  string
	ContentWrite string
	Social       string
	Profile      string
	Settings     string
}

// sqlSettingsStore is the real implementation using *sql.DB.
type sqlSettingsStore struct {
	db *sql.DB
}

func (s *sqlSettingsStore) FetchRow(ctx context.Context, userID string) (*settingsRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT navigation, content_read, content_write, social, profile, settings
		FROM trust_settings
		WHERE user_id = $1
	`, userID)

	var r settingsRow
	if err := row.Scan(&r.Navigation, &r.ContentRead, &r.ContentWrite,
		&r.Social, &r.Profile, &r.Settings); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlSettingsStore) SaveRow(ctx context.Context, userID string, row *settingsRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_settings
			(user_id, navigation, content_read, content_write, social, profile, settings, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			navigation    = EXCLUDED.navigation,
			content_read  = EXCLUDED.content_read,
			content_write = EXCLUDED.content_write,
			social        = EXCLUDED.social,
			profile       = EXCLUDED.profile,
			settings      = EXCLUDED.settings,
			updated_at    = EXCLUDED.updated_at
	`, userID, row.Navigation, row.ContentRead, row.ContentWrite,
		row.Social, row.Profile, row.Settings)
	return err
}

// PostgresRemote syncs trust settings to the trust_settings table.
type PostgresRemote struct {
	store settingsStore
}

// NewPostgresRemote creates a PostgresRemote on an open connection pool.
func NewPostgresRemote(db *sql.DB) *PostgresRemote {
	return &PostgresRemote{store: &sqlSettingsStore{db: db}}
}

// newPostgresRemoteWithStore creates a remote with a custom store (for testing).
func newPostgresRemoteWithStore(store settingsStore) *PostgresRemote {
	return &PostgresRemote{store: store}
}

func (r *PostgresRemote) Fetch(ctx context.Context, userID string) (Settings, bool, error) {
	row, err := r.store.FetchRow(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("trust remote: fetch: %w", err)
	}
	return Settings{
		CategoryNavigation:   Level(row.Navigation),
		CategoryContentRead:  Level(row.ContentRead),
		CategoryContentWrite: Level(row.ContentWrite),
		CategorySocial:       Level(row.Social),
		CategoryProfile:      Level(row.Profile),
		CategorySettings:     Level(row.Settings),
	}, true, nil
}

func (r *PostgresRemote) Save(ctx context.Context, userID string, s Settings) error {
	full := s.normalized()
	row := &settingsRow{
		Navigation:   string(full[CategoryNavigation]),
		ContentRead:  string(full[CategoryContentRead]),
		ContentWrite: string(full[CategoryContentWrite]),
		Social:       string(full[CategorySocial]),
		Profile:      string(full[CategoryProfile]),
		Settings:     string(full[CategorySettings]),
	}
	if err := r.store.SaveRow(ctx, userID, row); err != nil {
		return fmt.Errorf("trust remote: save: %w", err)
	}
	return nil
}
