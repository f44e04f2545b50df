package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/utils"
)

type storyReq struct {
	Characters []entities.Character `json:"characters"`
	entities.DecodingParams
}

type storyResp struct {
	Story string `json:"story"`
}

// POST /api/generatestory
func (s *Server) handlePostStory(c echo.Context) error {
	var req storyReq
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/generatestory", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid characters")
	}
	if req.Characters == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid characters")
	}

	log.Info("generating story", "characters", len(req.Characters))
	story, err := s.Storyteller.Generate(c.Request().Context(), req.Characters, req.DecodingParams)
	if err != nil {
		log.Error("story generation failed", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error()))
	}
	return c.JSON(http.StatusOK, payload[storyResp]{Payload: storyResp{Story: story}})
}
