// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/service"
	"github.com/Jehaaaa/sam-extractor/internal/session"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// PipelineHandler runs the matcher and converter pipelines on uploaded archives
type PipelineHandler interface {
	HandleMatch(c echo.Context) error
	HandleConvert(c echo.Context) error
}

// RunHandler serves stored run results
type RunHandler interface {
	HandleGetRun(c echo.Context) error
	HandleGetRows(c echo.Context) error
	HandleGetRowsMsgpack(c echo.Context) error
	HandleDownload(c echo.Context) error
	HandleDeleteRun(c echo.Context) error
}

// Runner executes pipelines. Implemented by *service.Service.
type Runner interface {
	Match(ctx context.Context, name string, r io.Reader) (*service.Outcome, error)
	Convert(ctx context.Context, name string, r io.Reader) (*service.Outcome, error)
}

// RunStore defines the interface for run storage.
// Implemented by *session.Manager; this allows mocking in tests.
type RunStore interface {
	Add(ctx context.Context, run *models.Run, rows [][]string, workbook []byte) error
	Get(id string) (*models.Run, bool)
	Touch(id string) bool
	Rows(ctx context.Context, id string, page, pageSize int) (*session.RowsPage, error)
	Workbook(id string) ([]byte, *models.Run, bool)
	Delete(ctx context.Context, id string) bool
}
