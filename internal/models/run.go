package models

import "time"

// PipelineKind identifies which pipeline produced a run.
type PipelineKind string

const (
	PipelineMatcher   PipelineKind = "matcher"
	PipelineConverter PipelineKind = "converter"
)

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunStatusComplete  RunStatus = "complete"
	RunStatusNoResults RunStatus = "no_results"
	RunStatusError     RunStatus = "error"
)

// Warning records a per-file problem that did not stop the run.
type Warning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Run summarises a finished pipeline run.
type Run struct {
	ID               string       `json:"id"`
	Kind             PipelineKind `json:"kind"`
	Status           RunStatus    `json:"status"`
	ArchiveName      string       `json:"archiveName"`
	OutputName       string       `json:"outputName,omitempty"`
	Columns          []string     `json:"columns"`
	RowCount         int          `json:"rowCount"`
	ExtractedCount   int          `json:"extractedCount"`
	Warnings         []Warning    `json:"warnings,omitempty"`
	ProcessingTimeMs int64        `json:"processingTimeMs"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// NewRun creates a Run in complete status with an empty warning list.
func NewRun(id string, kind PipelineKind, archiveName string) *Run {
	return &Run{
		ID:          id,
		Kind:        kind,
		Status:      RunStatusComplete,
		ArchiveName: archiveName,
		Warnings:    make([]Warning, 0),
		CreatedAt:   time.Now(),
	}
}
