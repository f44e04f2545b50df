package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/index"
	"taleweaver/pkg/utils"
)

type splitReq struct {
	Document     string `json:"document"`
	ChunkSize    int    `json:"chunkSize"`
	ChunkOverlap *int   `json:"chunkOverlap"`
}

type splitResp struct {
	NodesWithEmbedding []entities.Node `json:"nodesWithEmbedding"`
	IndexID            string          `json:"indexId"`
}

// POST /api/splitandembed
func (s *Server) handlePostSplit(c echo.Context) error {
	var req splitReq
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/splitandembed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if strings.TrimSpace(req.Document) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, index.ErrEmptyDocument.Error())
	}
	overlap := -1
	if req.ChunkOverlap != nil {
		overlap = *req.ChunkOverlap
	}

	id, nodes, err := s.Indexer.Build(c.Request().Context(), req.Document, req.ChunkSize, overlap)
	switch {
	case errors.Is(err, index.ErrEmptyDocument), errors.Is(err, index.ErrInvalidOverlap):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		log.Error("split and embed failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error()))
	}
	return c.JSON(http.StatusOK, payload[splitResp]{Payload: splitResp{NodesWithEmbedding: nodes, IndexID: id}})
}
