package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
	_ "github.com/lib/pq"
)

const exportSchemaSQL = `
CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	settings JSONB NOT NULL,
	asset_ids JSONB NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL DEFAULT 0,
	completed INTEGER NOT NULL DEFAULT 0,
	progress INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	failures JSONB NOT NULL DEFAULT '{}',
	archive_key TEXT NOT NULL DEFAULT '',
	archive_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
`

const selectExportSQL = `SELECT id, status, settings, asset_ids, webhook_url, total, completed, progress,
	succeeded, failed, failures, archive_key, archive_url, created_at, updated_at, completed_at
 FROM exports
 WHERE id = $1`

type PostgresExportStore struct {
	db *sql.DB
}

func NewPostgresExportStore(ctx context.Context, dsn string) (*PostgresExportStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresExportStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresExportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, exportSchemaSQL); err != nil {
		return fmt.Errorf("ensure exports schema: %w", err)
	}
	return nil
}

func (s *PostgresExportStore) Close() error {
	return s.db.Close()
}

func (s *PostgresExportStore) Create(ctx context.Context, rec domain.ExportRecord) error {
	settingsJSON, err := json.Marshal(rec.Settings)
	if err != nil {
		return fmt.Errorf("marshal export settings: %w", err)
	}
	assetsJSON, err := json.Marshal(rec.AssetIDs)
	if err != nil {
		return fmt.Errorf("marshal export asset ids: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO exports (id, status, settings, asset_ids, webhook_url, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID,
		rec.Status,
		settingsJSON,
		assetsJSON,
		rec.WebhookURL,
		rec.Total,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}

	return nil
}

func (s *PostgresExportStore) Get(ctx context.Context, id string) (domain.ExportRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, selectExportSQL, id)

	var (
		rec          domain.ExportRecord
		settingsJSON []byte
		assetsJSON   []byte
		failuresJSON []byte
		completedAt  sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Status,
		&settingsJSON,
		&assetsJSON,
		&rec.WebhookURL,
		&rec.Total,
		&rec.Completed,
		&rec.Progress,
		&rec.Succeeded,
		&rec.Failed,
		&failuresJSON,
		&rec.ArchiveKey,
		&rec.ArchiveURL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ExportRecord{}, false, nil
		}
		return domain.ExportRecord{}, false, fmt.Errorf("query export: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &rec.Settings); err != nil {
		return domain.ExportRecord{}, false, fmt.Errorf("unmarshal export settings: %w", err)
	}
	if err := json.Unmarshal(assetsJSON, &rec.AssetIDs); err != nil {
		return domain.ExportRecord{}, false, fmt.Errorf("unmarshal export asset ids: %w", err)
	}
	if err := json.Unmarshal(failuresJSON, &rec.Failures); err != nil {
		return domain.ExportRecord{}, false, fmt.Errorf("unmarshal export failures: %w", err)
	}
	if completedAt.Valid {
		at := completedAt.Time
		rec.CompletedAt = &at
	}

	return rec, true, nil
}

func (s *PostgresExportStore) UpdateStatus(ctx context.Context, id, status string) (domain.ExportRecord, error) {
	if err := s.exec(ctx, "update export status",
		`UPDATE exports SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	); err != nil {
		return domain.ExportRecord{}, err
	}
	return s.mustGet(ctx, id)
}

func (s *PostgresExportStore) UpdateProgress(ctx context.Context, id string, completed, progress int) error {
	return s.exec(ctx, "update export progress",
		`UPDATE exports SET completed = $1, progress = $2, updated_at = $3 WHERE id = $4`,
		completed, progress, time.Now().UTC(), id,
	)
}

func (s *PostgresExportStore) Finish(ctx context.Context, id, status string, summary domain.ExportSummary) (domain.ExportRecord, error) {
	failures := summary.Failures
	if failures == nil {
		failures = map[string]string{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return domain.ExportRecord{}, fmt.Errorf("marshal export failures: %w", err)
	}

	now := time.Now().UTC()
	if err := s.exec(ctx, "finish export",
		`UPDATE exports
		 SET status = $1, succeeded = $2, failed = $3, failures = $4, archive_key = $5, archive_url = $6,
		     updated_at = $7, completed_at = $7
		 WHERE id = $8`,
		status, summary.Succeeded, summary.Failed, failuresJSON, summary.ArchiveKey, summary.ArchiveURL, now, id,
	); err != nil {
		return domain.ExportRecord{}, err
	}
	return s.mustGet(ctx, id)
}

func (s *PostgresExportStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrExportNotFound
	}
	return nil
}

func (s *PostgresExportStore) mustGet(ctx context.Context, id string) (domain.ExportRecord, error) {
	rec, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.ExportRecord{}, err
	}
	if !ok {
		return domain.ExportRecord{}, ErrExportNotFound
	}
	return rec, nil
}
