package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/models"
)

// GraphHandler serves graph document imports.
type GraphHandler struct {
	imports domain.ImportService
	log     *logrus.Logger
}

// NewGraphHandler creates a GraphHandler. imports is nil when the server
// runs on an in-memory graph.
func NewGraphHandler(imports domain.ImportService, log *logrus.Logger) *GraphHandler {
	return &GraphHandler{imports: imports, log: log}
}

// Import handles POST /api/v1/graph/import.
func (h *GraphHandler) Import(c *gin.Context) {
	if h.imports == nil {
		respondError(c, http.StatusNotImplemented, ErrCodeUnavailable, "import requires a database-backed server")
		return
	}

	var doc models.GraphDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := doc.Validate(); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := h.imports.Import(c.Request.Context(), &doc)
	if err != nil {
		status, code, msg := classifyError(err)
		h.log.WithError(err).Error("importing graph")
		respondError(c, status, code, msg)

		return
	}

	h.log.WithFields(logrus.Fields{
		"action": "graph.import",
		"nodes":  result.Nodes,
		"edges":  result.Edges,
	}).Info("audit")

	c.JSON(http.StatusOK, result)
}
