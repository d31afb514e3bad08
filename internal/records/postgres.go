package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultPostgresTable is the table created by the artifact_records migration.
const DefaultPostgresTable = "artifact_records"

// Querier is the subset of pgxpool.Pool used by the Postgres store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// artifactRow is a row of the artifact_records table
type artifactRow struct {
	ID        uuid.UUID
	IDEmail   string
	IDUpload  string
	S3Key     *string
	Status    string
	UpdatedAt time.Time
}

// PostgresStore implements RecordStore on a Postgres table keyed by (id_email, id_upload).
type PostgresStore struct {
	db    Querier
	query string
}

// NewPostgresStore creates a record store reading from table.
func NewPostgresStore(db Querier, table string) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresStore{
		db: db,
		query: fmt.Sprintf(
			`SELECT id, id_email, id_upload, s3_key, status, updated_at FROM %s WHERE id_email = $1 AND id_upload = $2`,
			pgx.Identifier{table}.Sanitize()),
	}
}

// Get implements RecordStore.
func (s *PostgresStore) Get(ctx context.Context, key RecordKey) (*Record, error) {
	var row artifactRow
	err := s.db.QueryRow(ctx, s.query, key.Identity, key.UploadRef).Scan(
		&row.ID,
		&row.IDEmail,
		&row.IDUpload,
		&row.S3Key,
		&row.Status,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("query artifact record: %w", err)
	}

	record := &Record{
		Key:    key,
		Status: Status(row.Status),
	}
	if row.S3Key != nil {
		record.ObjectKey = *row.S3Key
	}
	return record, nil
}
