package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/models"
)

// GraphImporter is the data-access interface ImportService depends on.
type GraphImporter interface {
	ImportGraph(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error)
}

var _ domain.ImportService = (*ImportService)(nil)

// ImportService writes graph documents through a GraphImporter.
type ImportService struct {
	store GraphImporter
	log   *logrus.Logger
}

// NewImportService creates an ImportService.
func NewImportService(store GraphImporter, log *logrus.Logger) *ImportService {
	return &ImportService{store: store, log: log}
}

// Import upserts doc. Callers validate it first with doc.Validate, which also
// assigns missing edge IDs.
func (s *ImportService) Import(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error) {
	s.log.WithFields(logrus.Fields{
		"nodes": len(doc.Nodes),
		"edges": len(doc.Edges),
	}).Debug("graph.import")

	res, err := s.store.ImportGraph(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("importing graph: %w", err)
	}

	return res, nil
}
