// handlers_pipeline_test.go - Tests for the match and convert handlers
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/export"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/service"
	"github.com/Jehaaaa/sam-extractor/internal/session"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// MockRunStore is a map-backed RunStore for handler tests
type MockRunStore struct {
	runs      map[string]*models.Run
	rows      map[string][][]string
	workbooks map[string][]byte
}

func NewMockRunStore() *MockRunStore {
	return &MockRunStore{
		runs:      make(map[string]*models.Run),
		rows:      make(map[string][][]string),
		workbooks: make(map[string][]byte),
	}
}

func (m *MockRunStore) Add(ctx context.Context, run *models.Run, rows [][]string, workbook []byte) error {
	m.runs[run.ID] = run
	m.rows[run.ID] = rows
	m.workbooks[run.ID] = workbook
	return nil
}

func (m *MockRunStore) Get(id string) (*models.Run, bool) {
	run, ok := m.runs[id]
	return run, ok
}

func (m *MockRunStore) Touch(id string) bool {
	_, ok := m.runs[id]
	return ok
}

func (m *MockRunStore) Rows(ctx context.Context, id string, page, pageSize int) (*session.RowsPage, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, session.ErrRunNotFound
	}
	rows := m.rows[id]
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return &session.RowsPage{
		RunID:    id,
		Columns:  run.Columns,
		Rows:     rows[start:end],
		Total:    len(rows),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (m *MockRunStore) Workbook(id string) ([]byte, *models.Run, bool) {
	run, ok := m.runs[id]
	if !ok {
		return nil, nil, false
	}
	return m.workbooks[id], run, true
}

func (m *MockRunStore) Delete(ctx context.Context, id string) bool {
	if _, ok := m.runs[id]; !ok {
		return false
	}
	delete(m.runs, id)
	delete(m.rows, id)
	delete(m.workbooks, id)
	return true
}

func newTestRunner(t *testing.T) Runner {
	t.Helper()
	profile := config.DefaultProfile()
	profile.Matcher.Formats = []string{"rar", "zip"}

	svc, err := service.New(storage.NewMemory(), service.Options{Profile: profile}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

// multipartArchive builds a multipart body holding data under field
func multipartArchive(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newUploadContext(t *testing.T, target, filename string, data []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body, contentType := multipartArchive(t, "file", filename, data)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func matcherArchive(t *testing.T) []byte {
	return testutil.ZipFiles(t, map[string]string{
		"File Manifest & PCID/Manifest/AAABBB-PREFIX.txt": "manifest body",
		"File Manifest & PCID/PCID/AAABBB.txt":            "",
	})
}

func TestPipelineHandler_HandleMatch(t *testing.T) {
	runs := NewMockRunStore()
	h := NewPipelineHandler(newTestRunner(t), runs, 0, nil)

	c, rec := newUploadContext(t, "/api/match", "bundle.zip", matcherArchive(t))
	require.NoError(t, h.HandleMatch(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID          string     `json:"id"`
		Status      string     `json:"status"`
		RowCount    int        `json:"rowCount"`
		Columns     []string   `json:"columns"`
		Preview     [][]string `json:"preview"`
		DownloadURL string     `json:"downloadUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "complete", resp.Status)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, models.MatchColumns, resp.Columns)
	assert.Equal(t, [][]string{{"AAABBB", "AAABBB-PREFIX.txt", "AAABBB.txt", "manifest body", "AAABBB"}}, resp.Preview)
	assert.Equal(t, "/api/runs/"+resp.ID+"/download", resp.DownloadURL)

	_, stored := runs.Get(resp.ID)
	assert.True(t, stored)
}

func TestPipelineHandler_HandleConvert_XLSX(t *testing.T) {
	runs := NewMockRunStore()
	h := NewPipelineHandler(newTestRunner(t), runs, 0, nil)

	data := testutil.ZipFiles(t, map[string]string{"X-1.txt": "a", "Y-2.txt": "b"})
	c, rec := newUploadContext(t, "/api/convert?format=xlsx", "files.zip", data)
	require.NoError(t, h.HandleConvert(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="Prefix_Content.xlsx"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Empty(t, runs.runs)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Prefix", "Content"}, {"X", "a"}, {"Y", "b"}}, rows)
}

func TestPipelineHandler_PreviewIsCapped(t *testing.T) {
	h := NewPipelineHandler(newTestRunner(t), NewMockRunStore(), 1, nil)

	data := testutil.ZipFiles(t, map[string]string{"X-1.txt": "a", "Y-2.txt": "b"})
	c, rec := newUploadContext(t, "/api/convert", "files.zip", data)
	require.NoError(t, h.HandleConvert(c))

	var resp struct {
		RowCount int        `json:"rowCount"`
		Preview  [][]string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, [][]string{{"X", "a"}}, resp.Preview)
}

func TestPipelineHandler_NoResults(t *testing.T) {
	runs := NewMockRunStore()
	h := NewPipelineHandler(newTestRunner(t), runs, 0, nil)
	data := testutil.ZipFiles(t, map[string]string{
		"File Manifest & PCID/Manifest/AAABBB-X.txt": "a",
		"File Manifest & PCID/PCID/CCCDDD.txt":       "",
	})

	c, rec := newUploadContext(t, "/api/match", "bundle.zip", data)
	require.NoError(t, h.HandleMatch(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"no_results"`)
	assert.Empty(t, runs.runs)

	c, _ = newUploadContext(t, "/api/match?format=xlsx", "bundle.zip", data)
	err := h.HandleMatch(c)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "NO_RESULTS", apiErr.Code)
}

func TestPipelineHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		filename   string
		data       []byte
		wantStatus int
		errCode    string
	}{
		{
			name:       "corrupt zip",
			target:     "/api/convert",
			filename:   "files.zip",
			data:       []byte("PK\x03\x04garbage"),
			wantStatus: http.StatusUnprocessableEntity,
			errCode:    "ARCHIVE_UNREADABLE",
		},
		{
			name:       "rar sent to converter",
			target:     "/api/convert",
			filename:   "files.rar",
			data:       testutil.CorruptRAR(),
			wantStatus: http.StatusUnprocessableEntity,
			errCode:    "UNSUPPORTED_ARCHIVE",
		},
		{
			name:       "not an archive",
			target:     "/api/match",
			filename:   "notes.txt",
			data:       []byte("plain text"),
			wantStatus: http.StatusUnprocessableEntity,
			errCode:    "UNSUPPORTED_ARCHIVE",
		},
		{
			name:       "missing folders",
			target:     "/api/match",
			filename:   "bundle.zip",
			data:       testutil.ZipFiles(t, map[string]string{"loose.txt": "a"}),
			wantStatus: http.StatusUnprocessableEntity,
			errCode:    "STRUCTURE_MISSING",
		},
	}

	h := NewPipelineHandler(newTestRunner(t), NewMockRunStore(), 0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newUploadContext(t, tt.target, tt.filename, tt.data)

			var err error
			if tt.target == "/api/match" {
				err = h.HandleMatch(c)
			} else {
				err = h.HandleConvert(c)
			}

			apiErr, ok := err.(*APIError)
			require.True(t, ok, "expected APIError, got %T", err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.errCode, apiErr.Code)
		})
	}
}

func TestPipelineHandler_MissingFile(t *testing.T) {
	h := NewPipelineHandler(newTestRunner(t), NewMockRunStore(), 0, nil)

	body, contentType := multipartArchive(t, "other", "a.zip", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/match", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := h.HandleMatch(c)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

type failingRunner struct{ err error }

func (f failingRunner) Match(ctx context.Context, name string, r io.Reader) (*service.Outcome, error) {
	return nil, f.err
}

func (f failingRunner) Convert(ctx context.Context, name string, r io.Reader) (*service.Outcome, error) {
	return nil, f.err
}

func TestPipelineHandler_CancelledRun(t *testing.T) {
	h := NewPipelineHandler(failingRunner{err: context.Canceled}, NewMockRunStore(), 0, nil)

	c, _ := newUploadContext(t, "/api/convert", "a.zip", []byte("x"))
	err := h.HandleConvert(c)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}
