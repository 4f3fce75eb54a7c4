package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"assistgen-backend/internal/models"
)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, user_id, filename, original_name, content_type, size_bytes, text_chars, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	doc.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		doc.ID, doc.UserID, doc.Filename, doc.OriginalName,
		doc.ContentType, doc.SizeBytes, doc.TextChars, doc.StoragePath,
	).Scan(&doc.CreatedAt)
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	query := `SELECT id, user_id, filename, original_name, content_type, size_bytes, text_chars, storage_path, created_at
		FROM documents WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Filename, &d.OriginalName,
			&d.ContentType, &d.SizeBytes, &d.TextChars, &d.StoragePath, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}
