// handlers_pipeline.go - Archive upload handlers for the matcher and converter
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Jehaaaa/sam-extractor/internal/export"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DefaultPreviewRows is the number of rows returned inline with a run summary.
const DefaultPreviewRows = 50

// PipelineHandlerImpl implements the PipelineHandler interface
type PipelineHandlerImpl struct {
	runner      Runner
	runs        RunStore
	previewRows int
	logger      *zap.Logger
}

// NewPipelineHandler creates a new pipeline handler instance
func NewPipelineHandler(runner Runner, runs RunStore, previewRows int, logger *zap.Logger) PipelineHandler {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineHandlerImpl{
		runner:      runner,
		runs:        runs,
		previewRows: previewRows,
		logger:      logger,
	}
}

// runResponse is the JSON answer to an upload
type runResponse struct {
	*models.Run
	Preview     [][]string `json:"preview"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
}

type runFunc func(ctx context.Context, name string, r io.Reader) (*service.Outcome, error)

// HandleMatch accepts a multipart archive under "file" and runs the matcher
func (h *PipelineHandlerImpl) HandleMatch(c echo.Context) error {
	return h.handle(c, "matcher", h.runner.Match)
}

// HandleConvert accepts a multipart archive under "file" and runs the converter
func (h *PipelineHandlerImpl) HandleConvert(c echo.Context) error {
	return h.handle(c, "converter", h.runner.Convert)
}

func (h *PipelineHandlerImpl) handle(c echo.Context, kind string, run runFunc) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}

	src, err := file.Open()
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	defer src.Close()

	ctx := c.Request().Context()
	outcome, err := run(ctx, file.Filename, src)
	if err != nil {
		h.logger.Warn("run failed",
			zap.String("pipeline", kind),
			zap.String("archive", file.Filename),
			zap.Error(err))
		return FromPipelineError(err)
	}

	if strings.EqualFold(c.QueryParam("format"), "xlsx") {
		if !outcome.HasResults() {
			return NewNoResultsError(kind)
		}
		return sendWorkbook(c, outcome.Run.OutputName, outcome.Workbook)
	}

	resp := runResponse{Run: outcome.Run, Preview: [][]string{}}
	if !outcome.HasResults() {
		return c.JSON(http.StatusOK, resp)
	}

	if err := h.runs.Add(ctx, outcome.Run, outcome.Sheet.Rows, outcome.Workbook); err != nil {
		return NewInternalError("failed to store run", err)
	}

	rows := outcome.Sheet.Rows
	if len(rows) > h.previewRows {
		rows = rows[:h.previewRows]
	}
	resp.Preview = rows
	resp.DownloadURL = fmt.Sprintf("/api/runs/%s/download", outcome.Run.ID)

	return c.JSON(http.StatusCreated, resp)
}

func sendWorkbook(c echo.Context, filename string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, export.ContentType, data)
}
