// Package session keeps finished pipeline runs for preview and download.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxRuns limits stored runs to bound memory held by workbooks.
const DefaultMaxRuns = 20

// RunKeepAliveWindow protects recently read runs from age-based cleanup.
const RunKeepAliveWindow = 5 * time.Minute

// ErrRunNotFound is returned for unknown or expired run IDs.
var ErrRunNotFound = errors.New("run not found")

// shortID safely truncates an ID for logging
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// RunState holds a run summary, its workbook and access bookkeeping.
type RunState struct {
	Run          *models.Run
	Workbook     []byte
	LastAccessed time.Time
}

// RowsPage is one page of a run's output rows.
type RowsPage struct {
	RunID    string     `json:"runId" msgpack:"runId"`
	Columns  []string   `json:"columns" msgpack:"columns"`
	Rows     [][]string `json:"rows" msgpack:"rows"`
	Total    int        `json:"total" msgpack:"total"`
	Page     int        `json:"page" msgpack:"page"`
	PageSize int        `json:"pageSize" msgpack:"pageSize"`
}

// Manager stores finished runs. Summaries and workbooks stay in memory,
// rows live in the RowStore.
type Manager struct {
	runs    map[string]*RunState
	mu      sync.RWMutex
	rows    *RowStore
	maxRuns int
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a run manager on top of rows. maxRuns <= 0 uses
// DefaultMaxRuns.
func NewManager(rows *RowStore, maxRuns int, logger *zap.Logger) *Manager {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		runs:    make(map[string]*RunState),
		rows:    rows,
		maxRuns: maxRuns,
		logger:  logger.Named("runs"),
		now:     time.Now,
	}
}

// Add stores a finished run with its rows and workbook, evicting the least
// recently used runs when at capacity.
func (m *Manager) Add(ctx context.Context, run *models.Run, rows [][]string, workbook []byte) error {
	if err := m.rows.Insert(ctx, run.ID, rows); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictIfNeeded(ctx)
	m.runs[run.ID] = &RunState{
		Run:          run,
		Workbook:     workbook,
		LastAccessed: m.now(),
	}
	m.logger.Info("run stored",
		zap.String("run", shortID(run.ID)),
		zap.String("kind", string(run.Kind)),
		zap.Int("rows", len(rows)))
	return nil
}

// evictIfNeeded must be called with m.mu held.
func (m *Manager) evictIfNeeded(ctx context.Context) {
	if len(m.runs) < m.maxRuns {
		return
	}

	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.runs[ids[i]].LastAccessed.Before(m.runs[ids[j]].LastAccessed)
	})

	toFree := len(m.runs) - m.maxRuns + 1
	for _, id := range ids[:toFree] {
		m.dropLocked(ctx, id)
		m.logger.Info("evicted run to stay under limit", zap.String("run", shortID(id)))
	}
}

func (m *Manager) dropLocked(ctx context.Context, id string) {
	delete(m.runs, id)
	if err := m.rows.Delete(ctx, id); err != nil {
		m.logger.Warn("failed to delete run rows", zap.String("run", shortID(id)), zap.Error(err))
	}
}

// Get returns a run summary by ID.
func (m *Manager) Get(id string) (*models.Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	return state.Run, true
}

// Touch updates the LastAccessed timestamp of a run.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return false
	}
	state.LastAccessed = m.now()
	return true
}

// Rows returns one page of a run's rows. page is 1-based.
func (m *Manager) Rows(ctx context.Context, id string, page, pageSize int) (*RowsPage, error) {
	run, ok := m.Get(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	m.Touch(id)

	if page < 1 {
		page = 1
	}
	result := &RowsPage{
		RunID:    id,
		Columns:  run.Columns,
		Rows:     [][]string{},
		Total:    run.RowCount,
		Page:     page,
		PageSize: pageSize,
	}

	offset := (page - 1) * pageSize
	if offset >= run.RowCount || pageSize <= 0 {
		return result, nil
	}

	rows, err := m.rows.Page(ctx, id, len(run.Columns), offset, pageSize)
	if err != nil {
		return nil, err
	}
	result.Rows = rows
	return result, nil
}

// Workbook returns the stored spreadsheet of a run.
func (m *Manager) Workbook(id string) ([]byte, *models.Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return nil, nil, false
	}
	state.LastAccessed = m.now()
	return state.Workbook, state.Run, true
}

// Delete removes a run and its rows.
func (m *Manager) Delete(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return false
	}
	m.dropLocked(ctx, id)
	return true
}

// Len returns the number of stored runs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// CleanupOldRuns removes runs not accessed within maxAge, keeping runs
// touched within RunKeepAliveWindow.
func (m *Manager) CleanupOldRuns(ctx context.Context, maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-RunKeepAliveWindow)

	removed := 0
	for id, state := range m.runs {
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			m.dropLocked(ctx, id)
			removed++
			m.logger.Info("cleaned up aged run",
				zap.String("run", shortID(id)),
				zap.Duration("idle", now.Sub(state.LastAccessed).Round(time.Second)))
		}
	}
	return removed
}

// Close drops all runs and closes the row store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = make(map[string]*RunState)
	return m.rows.Close()
}
