// Package status serves the progress of a running training job over HTTP.
package status

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/organ/internal/report"
	"github.com/samcharles93/organ/internal/version"
)

type Server struct {
	board *report.Board
	clock func() time.Time
}

func NewServer(board *report.Board) *Server {
	return &Server{board: board, clock: time.Now}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/status", s.handleStatus)
	e.GET("/v1/status/:phase", s.handlePhase)
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	snap := s.board.Snapshot()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Uptime:  s.clock().Sub(snap.StartedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.board.Snapshot())
}

func (s *Server) handlePhase(c *echo.Context) error {
	phase := report.Phase(c.Param("phase"))
	switch phase {
	case report.PhaseGeneratorPretrain, report.PhaseDiscriminatorPretrain, report.PhaseAdversarial:
	default:
		return writeError(c, http.StatusBadRequest, "unknown phase "+string(phase))
	}
	rec, ok := s.board.Snapshot().Phases[phase]
	if !ok {
		return writeError(c, http.StatusNotFound, "phase "+string(phase)+" has not started")
	}
	return c.JSON(http.StatusOK, rec)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}
