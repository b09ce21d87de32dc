package client

import (
	"context"
	"net/http"
)

// GraphService handles graph document imports.
type GraphService struct {
	c *Client
}

// Import upserts every node and edge of doc. The server must be backed by
// PostgreSQL.
func (s *GraphService) Import(ctx context.Context, doc *GraphDocument) (*ImportResult, error) {
	var result ImportResult
	if err := s.c.do(ctx, http.MethodPost, "/api/v1/graph/import", doc, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
