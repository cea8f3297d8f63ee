package domain

import "context"

// DocumentClient resolves the allow-listed indexed documents of a dataroom.
type DocumentClient interface {
	// ListIndexedDocuments returns the documents visible in the dataroom,
	// with display title and page count.
	ListIndexedDocuments(ctx context.Context, dataroomID string) ([]IndexedDocument, error)
}
