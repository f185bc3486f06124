package trust

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteCache is the on-device trust cache backing the local half of the
// local-first write discipline. One row per user, one column per category.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (or creates) dataDir/trust.db, enables WAL mode, and
// bootstraps the schema. Caller must Close when done.
func OpenSQLiteCache(dataDir string) (*SQLiteCache, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("trust cache: data_dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("trust cache: %w", err)
	}
	dbPath := filepath.Join(dataDir, "trust.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("trust cache: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trust cache: WAL: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trust_settings (
			user_id       TEXT NOT NULL PRIMARY KEY,
			navigation    TEXT NOT NULL,
			content_read  TEXT NOT NULL,
			content_write TEXT NOT NULL,
			social        TEXT NOT NULL,
			profile       TEXT NOT NULL,
			settings      TEXT NOT NULL,
			updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trust cache: schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) Load(userID string) (Settings, bool, error) {
	row := c.db.QueryRow(`
		SELECT navigation, content_read, content_write, social, profile, settings
		FROM trust_settings
		WHERE user_id = ?
	`, userID)

	var nav, cr, cw, soc, prof, set string
	if err := row.Scan(&nav, &cr, &cw, &soc, &prof, &set); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("trust cache: load: %w", err)
	}
	return Settings{
		CategoryNavigation:   Level(nav),
		CategoryContentRead:  Level(cr),
		CategoryContentWrite: Level(cw),
		CategorySocial:       Level(soc),
		CategoryProfile:      Level(prof),
		CategorySettings:     Level(set),
	}, true, nil
}

func (c *SQLiteCache) Save(userID string, s Settings) error {
	full := s.normalized()
	_, err := c.db.Exec(`
		INSERT INTO trust_settings
			(user_id, navigation, content_read, content_write, social, profile, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			navigation    = excluded.navigation,
			content_read  = excluded.content_read,
			content_write = excluded.content_write,
			social        = excluded.social,
			profile       = excluded.profile,
			settings      = excluded.settings,
			updated_at    = excluded.updated_at
	`, userID,
		string(full[CategoryNavigation]),
		string(full[CategoryContentRead]),
		string(full[CategoryContentWrite]),
		string(full[CategorySocial]),
		string(full[CategoryProfile]),
		string(full[CategorySettings]),
	)
	if err != nil {
		return fmt.Errorf("trust cache: save: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Clear(userID string) error {
	if _, err := c.db.Exec(`DELETE FROM trust_settings WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("trust cache: clear: %w", err)
	}
	return nil
}
