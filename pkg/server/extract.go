package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/index"
	"taleweaver/pkg/pipeline"
	"taleweaver/pkg/utils"
)

type extractReq struct {
	NodesWithEmbedding []entities.Node `json:"nodesWithEmbedding"`
	IndexID            string          `json:"indexId,omitempty"`
	entities.DecodingParams
}

// POST /api/extractcharacters
func (s *Server) handlePostExtract(c echo.Context) error {
	var req extractReq
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/extractcharacters", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid nodesWithEmbedding")
	}

	ctx := c.Request().Context()
	nodes := req.NodesWithEmbedding
	if nodes == nil && req.IndexID != "" && s.Nodes != nil {
		var err error
		nodes, err = s.Nodes.Nodes(ctx, req.IndexID)
		if errors.Is(err, index.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "index not found")
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error()))
		}
	}
	if nodes == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid nodesWithEmbedding")
	}

	log.Info("extracting characters", "nodes", len(nodes), "index", req.IndexID)
	res, err := s.Extractor.Extract(ctx, pipeline.JoinNodes(nodes), req.DecodingParams)
	if err != nil {
		log.Error("character extraction failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error()))
	}
	return c.JSON(http.StatusOK, payload[pipeline.Result]{Payload: res})
}
