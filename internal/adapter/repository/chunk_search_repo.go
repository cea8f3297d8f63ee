package repository

import (
	"context"
	"fmt"

	"dataroom-rag/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type chunkSearchRepository struct {
	pool    *pgxpool.Pool
	encoder domain.VectorEncoder
}

// NewChunkSearchRepository creates the pgvector-backed search collaborator.
func NewChunkSearchRepository(pool *pgxpool.Pool, encoder domain.VectorEncoder) domain.VectorSearcher {
	return &chunkSearchRepository{pool: pool, encoder: encoder}
}

// Search embeds the query and runs a cosine-similarity search over the
// dataroom's chunks. The page restriction applies only when filter.Pages is
// set.
func (r *chunkSearchRepository) Search(ctx context.Context, query string, filter domain.MetadataFilter, params domain.SearchParams) ([]domain.SearchResult, error) {
	embeddings, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	queryVector := pgvector.NewVector(embeddings[0])

	sql := `
		SELECT c.id, c.document_id, c.content, c.page, 1 - (c.embedding <=> $1) AS similarity
		FROM dataroom_chunks c
		WHERE c.dataroom_id = $2
		  AND c.document_id = ANY($3)
		  AND ($4::int[] IS NULL OR c.page = ANY($4))
		  AND 1 - (c.embedding <=> $1) >= $5
		ORDER BY c.embedding <=> $1
		LIMIT $6`

	var pages []int
	if len(filter.Pages) > 0 {
		pages = filter.Pages
	}

	rows, err := r.pool.Query(ctx, sql,
		queryVector,
		filter.DataroomID,
		filter.DocumentIDs,
		pages,
		params.SimilarityThreshold,
		params.ResultCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		var page int
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Content, &page, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		res.Metadata = map[string]any{"page": page}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	return results, nil
}
