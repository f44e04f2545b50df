package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "Taleweaver API",
		"status":  "ok",
		"endpoints": []string{
			"POST /api/splitandembed",
			"POST /api/extractcharacters",
			"POST /api/generatestory",
		},
	})
}
