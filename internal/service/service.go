// Package service runs a pipeline end to end: extract, process, export.
// The HTTP handlers and the CLI both go through it.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/converter"
	"github.com/Jehaaaa/sam-extractor/internal/export"
	"github.com/Jehaaaa/sam-extractor/internal/logging"
	"github.com/Jehaaaa/sam-extractor/internal/matcher"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/textdecode"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures both pipelines.
type Options struct {
	Profile *config.Profile
	Decoder *textdecode.Decoder
	Policy  matcher.DuplicatePolicy
}

// OptionsFromConfig loads the layout profile and builds the decoder and
// duplicate policy named in cfg.
func OptionsFromConfig(cfg *config.AppConfig) (Options, error) {
	profile, err := config.LoadProfile(cfg.Processing.ProfilePath)
	if err != nil {
		return Options{}, err
	}
	mode, err := textdecode.ParseMode(cfg.Processing.DecodeMode)
	if err != nil {
		return Options{}, err
	}
	dec, err := textdecode.New(mode, cfg.Processing.SourceCharset)
	if err != nil {
		return Options{}, err
	}
	policy, err := matcher.ParseDuplicatePolicy(cfg.Processing.DuplicateKeyPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{Profile: profile, Decoder: dec, Policy: policy}, nil
}

// Outcome is a finished run. Sheet and Workbook are empty when the run
// produced no rows.
type Outcome struct {
	Run      *models.Run
	Sheet    export.Sheet
	Workbook []byte
}

// HasResults reports whether a spreadsheet was produced.
func (o *Outcome) HasResults() bool {
	return o.Run.Status == models.RunStatusComplete
}

// Service owns one matcher and one converter pipeline.
type Service struct {
	provider  storage.Provider
	matcher   *matcher.Pipeline
	converter *converter.Pipeline
	logger    *zap.Logger
}

// New builds both pipelines. Workspaces come from provider.
func New(provider storage.Provider, opts Options, logger *zap.Logger) (*Service, error) {
	logger = logging.OrNop(logger)

	m, err := matcher.NewPipeline(opts.Profile, opts.Policy, opts.Decoder, logger)
	if err != nil {
		return nil, fmt.Errorf("matcher pipeline: %w", err)
	}
	c, err := converter.NewPipeline(opts.Profile, opts.Decoder, logger)
	if err != nil {
		return nil, fmt.Errorf("converter pipeline: %w", err)
	}

	return &Service{
		provider:  provider,
		matcher:   m,
		converter: c,
		logger:    logger,
	}, nil
}

// Match runs the matcher pipeline on the archive read from r.
func (s *Service) Match(ctx context.Context, name string, r io.Reader) (*Outcome, error) {
	start := time.Now()
	run := models.NewRun(uuid.New().String(), models.PipelineMatcher, name)

	res, err := s.matcher.Run(ctx, s.provider, name, r)
	if err != nil {
		return nil, err
	}

	run.Columns = models.MatchColumns
	run.ExtractedCount = res.Extracted
	run.Warnings = res.Warnings
	sheet := export.MatchSheet(s.matcher.SheetName(), res.Matches)

	return s.finish(run, sheet, s.matcher.OutputName(), start)
}

// Convert runs the converter pipeline on the archive read from r.
func (s *Service) Convert(ctx context.Context, name string, r io.Reader) (*Outcome, error) {
	start := time.Now()
	run := models.NewRun(uuid.New().String(), models.PipelineConverter, name)

	res, err := s.converter.Run(ctx, s.provider, name, r)
	if err != nil {
		return nil, err
	}

	run.Columns = models.PrefixColumns
	run.ExtractedCount = res.Extracted
	run.Warnings = res.Warnings
	sheet := export.PrefixSheet(s.converter.SheetName(), res.Rows)

	return s.finish(run, sheet, s.converter.OutputName(), start)
}

func (s *Service) finish(run *models.Run, sheet export.Sheet, outputName string, start time.Time) (*Outcome, error) {
	run.RowCount = len(sheet.Rows)
	if run.Warnings == nil {
		run.Warnings = make([]models.Warning, 0)
	}

	if run.RowCount == 0 {
		run.Status = models.RunStatusNoResults
		run.ProcessingTimeMs = time.Since(start).Milliseconds()
		s.logger.Warn("run produced no rows",
			zap.String("kind", string(run.Kind)),
			zap.String("archive", run.ArchiveName),
			zap.Int("warnings", len(run.Warnings)))
		return &Outcome{Run: run}, nil
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, sheet); err != nil {
		return nil, fmt.Errorf("exporting spreadsheet: %w", err)
	}

	run.OutputName = outputName
	run.ProcessingTimeMs = time.Since(start).Milliseconds()
	return &Outcome{Run: run, Sheet: sheet, Workbook: buf.Bytes()}, nil
}
