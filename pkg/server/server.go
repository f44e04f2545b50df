package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"taleweaver/pkg/entities"
	"taleweaver/pkg/utils"
	"taleweaver/pkg/workflow"
)

// NodeSource resolves a previously built index to its nodes.
type NodeSource interface {
	Nodes(ctx context.Context, indexID string) ([]entities.Node, error)
}

type Server struct {
	Echo        *echo.Echo
	Ctx         context.Context
	Extractor   workflow.Extractor
	Storyteller workflow.Storyteller
	Indexer     workflow.Indexer
	Nodes       NodeSource
}

func NewServer(ctx context.Context, extractor workflow.Extractor, storyteller workflow.Storyteller, indexer workflow.Indexer, nodes NodeSource) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("32M"))

	s := &Server{
		Echo:        e,
		Ctx:         ctx,
		Extractor:   extractor,
		Storyteller: storyteller,
		Indexer:     indexer,
		Nodes:       nodes,
	}
	e.HTTPErrorHandler = s.handleError

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.POST("/extractcharacters", s.handlePostExtract)
	api.POST("/generatestory", s.handlePostStory)
	api.POST("/splitandembed", s.handlePostSplit)
}

// payload wraps successful responses.
type payload[T any] struct {
	Payload T `json:"payload"`
}

// handleError renders every failure, including router 404/405, as {"error": msg}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.Path(), "status", code, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, utils.ErrJSON(msg))
	}
	if err != nil {
		log.Error("failed to write error response", "error", err)
	}
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}
