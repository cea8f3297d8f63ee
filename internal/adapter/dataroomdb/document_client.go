package dataroomdb

import (
	"context"
	"fmt"

	"dataroom-rag/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type documentClient struct {
	pool *pgxpool.Pool
}

// NewDocumentClient creates a client that resolves the indexed documents of
// a dataroom from the shared database.
func NewDocumentClient(pool *pgxpool.Pool) domain.DocumentClient {
	return &documentClient{pool: pool}
}

// ListIndexedDocuments returns the documents visible in the dataroom with
// display title and page count, ordered by title for stable output.
func (c *documentClient) ListIndexedDocuments(ctx context.Context, dataroomID string) ([]domain.IndexedDocument, error) {
	sql := `
		SELECT d.id, d.title, d.page_count
		FROM dataroom_documents d
		WHERE d.dataroom_id = $1
		  AND d.indexed_at IS NOT NULL
		ORDER BY d.title`

	rows, err := c.pool.Query(ctx, sql, dataroomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.IndexedDocument
	for rows.Next() {
		var doc domain.IndexedDocument
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.PageCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}
