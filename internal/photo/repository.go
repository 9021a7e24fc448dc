// Package photo holds the photo metadata records and their persistence.
package photo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is the metadata row describing one uploaded image.
type Record struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	StorageKey  string     `json:"storageKey"`
	ContentType string     `json:"contentType"`
	SizeBytes   int64      `json:"sizeBytes"`
	TakenAt     *time.Time `json:"takenAt,omitempty"`
	Camera      *string    `json:"camera,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewRecord is the caller-supplied part of a Record; ID and CreatedAt are
// assigned by the database.
type NewRecord struct {
	Name        string
	URL         string
	StorageKey  string
	ContentType string
	SizeBytes   int64
	TakenAt     *time.Time
	Camera      *string
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("photo not found")

// ErrDuplicateKey is returned when a storage key is already referenced by another record.
var ErrDuplicateKey = errors.New("storage key already recorded")

const recordColumns = `id, name, url, storage_key, content_type, size_bytes, taken_at, camera, created_at`

// Repository handles all photo database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert stores a new record and returns it with its assigned id and timestamp.
func (r *Repository) Insert(ctx context.Context, nr NewRecord) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO photos (name, url, storage_key, content_type, size_bytes, taken_at, camera)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+recordColumns,
		nr.Name, nr.URL, nr.StorageKey, nr.ContentType, nr.SizeBytes, nr.TakenAt, nr.Camera,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert photo: %w", err)
	}
	return rec, nil
}

// ListAll returns every record, newest first. Ties on created_at are
// broken by id so repeated reads return the same order.
func (r *Repository) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM photos
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return records, nil
}

// GetByID fetches a record by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM photos WHERE id = $1`,
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo by id: %w", err)
	}
	return rec, nil
}

// DeleteByID removes the record with the given id.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if isInvalidUUID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.StorageKey, &rec.ContentType,
		&rec.SizeBytes, &rec.TakenAt, &rec.Camera, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidUUID reports invalid_text_representation (22P02), raised when an id is not a UUID.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
