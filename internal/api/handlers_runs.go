// handlers_runs.go - Stored run handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Jehaaaa/sam-extractor/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// RunHandlerImpl implements the RunHandler interface
type RunHandlerImpl struct {
	runs RunStore
}

// NewRunHandler creates a new run handler instance
func NewRunHandler(runs RunStore) RunHandler {
	return &RunHandlerImpl{runs: runs}
}

// HandleGetRun returns a run summary
func (h *RunHandlerImpl) HandleGetRun(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	run, ok := h.runs.Get(id)
	if !ok {
		return NewNotFoundError("run", id)
	}
	h.runs.Touch(id)

	return c.JSON(http.StatusOK, run)
}

// HandleGetRows returns paginated rows of a run
func (h *RunHandlerImpl) HandleGetRows(c echo.Context) error {
	page, err := h.queryRows(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// HandleGetRowsMsgpack returns the same page as HandleGetRows in MessagePack format
func (h *RunHandlerImpl) HandleGetRowsMsgpack(c echo.Context) error {
	page, err := h.queryRows(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(page)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *RunHandlerImpl) queryRows(c echo.Context) (*session.RowsPage, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	// Parse pagination params
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	result, err := h.runs.Rows(c.Request().Context(), id, page, pageSize)
	if errors.Is(err, session.ErrRunNotFound) {
		return nil, NewNotFoundError("run", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to query rows", err)
	}
	return result, nil
}

// HandleDownload sends the run's spreadsheet as an attachment
func (h *RunHandlerImpl) HandleDownload(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	data, run, ok := h.runs.Workbook(id)
	if !ok {
		return NewNotFoundError("run", id)
	}
	return sendWorkbook(c, run.OutputName, data)
}

// HandleDeleteRun drops a stored run
func (h *RunHandlerImpl) HandleDeleteRun(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if !h.runs.Delete(c.Request().Context(), id) {
		return NewNotFoundError("run", id)
	}
	return c.NoContent(http.StatusNoContent)
}
