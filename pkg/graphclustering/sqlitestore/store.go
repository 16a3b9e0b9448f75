// Package sqlitestore persists community records and summaries in a local
// SQLite database. It implements graphclustering.CommunityPersister.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

const schema = `
CREATE TABLE IF NOT EXISTS community_records (
	level   INTEGER NOT NULL,
	id      TEXT    NOT NULL,
	digest  TEXT    NOT NULL,
	data    TEXT    NOT NULL,
	PRIMARY KEY (level, id)
);
CREATE TABLE IF NOT EXISTS community_summaries (
	level         INTEGER NOT NULL,
	id            TEXT    NOT NULL,
	source_digest TEXT    NOT NULL,
	generated_at  INTEGER NOT NULL,
	data          TEXT    NOT NULL,
	PRIMARY KEY (level, id)
);
`

// Store is a SQLite-backed community persister.
type Store struct {
	db   *sql.DB
	path string
}

var _ gc.CommunityPersister = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: database path is required", errors.ErrInvalidConfig),
			"sqlitestore", "Open", "validate path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.WrapFatal(err, "sqlitestore", "Open", "create data directory")
		}
	}

	// WAL mode for concurrent readers while the build writes
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.WrapFatal(err, "sqlitestore", "Open", "open database")
	}
	// SQLite serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.WrapFatal(err, "sqlitestore", "Open", "apply schema")
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WriteCommunityRecord stores a record, replacing any previous version
func (s *Store) WriteCommunityRecord(ctx context.Context, record *gc.CommunityRecord) error {
	if record == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "sqlitestore", "WriteCommunityRecord", "record is nil")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapInvalid(err, "sqlitestore", "WriteCommunityRecord", "marshal record")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO community_records (level, id, digest, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (level, id) DO UPDATE SET digest = excluded.digest, data = excluded.data`,
		record.Level, record.ID, record.Digest, string(data))
	if err != nil {
		return errors.WrapTransient(err, "sqlitestore", "WriteCommunityRecord", "upsert record")
	}
	return nil
}

// WriteSummary stores a summary, replacing any previous version
func (s *Store) WriteSummary(ctx context.Context, summary *gc.CommunitySummary) error {
	if summary == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "sqlitestore", "WriteSummary", "summary is nil")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return errors.WrapInvalid(err, "sqlitestore", "WriteSummary", "marshal summary")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO community_summaries (level, id, source_digest, generated_at, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (level, id) DO UPDATE SET
			source_digest = excluded.source_digest,
			generated_at = excluded.generated_at,
			data = excluded.data`,
		summary.Level, summary.CommunityID, summary.SourceDigest, summary.GeneratedAt.UnixNano(), string(data))
	if err != nil {
		return errors.WrapTransient(err, "sqlitestore", "WriteSummary", "upsert summary")
	}
	return nil
}

// ReadSummary returns the stored summary for key, or nil if there is none
func (s *Store) ReadSummary(ctx context.Context, key gc.CommunityKey) (*gc.CommunitySummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM community_summaries WHERE level = ? AND id = ?`, key.Level, key.ID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "sqlitestore", "ReadSummary", "query summary")
	}

	var summary gc.CommunitySummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, errors.WrapInvalid(err, "sqlitestore", "ReadSummary", "unmarshal summary")
	}
	return &summary, nil
}

// ListCommunityRecords returns every stored record ordered by level, then ID
func (s *Store) ListCommunityRecords(ctx context.Context) ([]*gc.CommunityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT level, id, data FROM community_records ORDER BY level, id`)
	if err != nil {
		return nil, errors.WrapTransient(err, "sqlitestore", "ListCommunityRecords", "query records")
	}
	defer rows.Close()

	var records []*gc.CommunityRecord
	for rows.Next() {
		var (
			want gc.CommunityKey
			data string
		)
		if err := rows.Scan(&want.Level, &want.ID, &data); err != nil {
			return nil, errors.WrapTransient(err, "sqlitestore", "ListCommunityRecords", "scan record")
		}
		var record gc.CommunityRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, errors.WrapInvalid(err, "sqlitestore", "ListCommunityRecords", "unmarshal record")
		}
		if record.Key() != want {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: record %s stored under %s", errors.ErrInvalidData, record.Key(), want),
				"sqlitestore", "ListCommunityRecords", "verify record key")
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "sqlitestore", "ListCommunityRecords", "iterate records")
	}
	return records, nil
}

// ResetCommunities deletes every stored record and summary
func (s *Store) ResetCommunities(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "sqlitestore", "ResetCommunities", "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"community_records", "community_summaries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.WrapTransient(err, "sqlitestore", "ResetCommunities", "clear "+table)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "sqlitestore", "ResetCommunities", "commit")
	}
	return nil
}
