package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// PostgresDocuments keeps workbooks in the import_documents table.
type PostgresDocuments struct {
	db DBTX
}

func NewPostgresDocuments(db DBTX) *PostgresDocuments {
	return &PostgresDocuments{db: db}
}

func (s *PostgresDocuments) Create(ctx context.Context, doc core.Document) (string, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_documents (id, file_name, content_type, data)
		VALUES ($1, $2, $3, $4)`,
		id, doc.FileName, doc.ContentType, doc.Data,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id.String(), nil
}

func (s *PostgresDocuments) Load(ctx context.Context, id string) ([]byte, error) {
	key := toPgUUID(id)
	if !key.Valid {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM import_documents WHERE id = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return data, nil
}

// Update overwrites the stored workbook with its annotated copy.
func (s *PostgresDocuments) Update(ctx context.Context, id string, data []byte, meta core.DocumentMeta) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE import_documents
		SET data = $2, file_name = $3, content_type = $4, entity_type = $5,
		    success_count = $6, error_count = $7, updated_at = now()
		WHERE id = $1`,
		toPgUUID(id), data, meta.FileName, meta.ContentType, toPgText(string(meta.EntityType)),
		meta.SuccessCount, meta.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return nil
}
