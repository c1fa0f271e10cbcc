package converter

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/Jehaaaa/sam-extractor/internal/archive"
	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/logging"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/textdecode"
	"go.uber.org/zap"
)

// Result is the outcome of one converter run.
type Result struct {
	Archive   *models.FileInfo   `json:"archive"`
	Extracted int                `json:"extracted"`
	Rows      []models.PrefixRow `json:"rows"`
	Warnings  []models.Warning   `json:"warnings"`
}

// Pipeline runs extract -> walk -> prefix -> accumulate.
type Pipeline struct {
	profile config.ConverterProfile
	formats []archive.Format
	filter  Filter
	decoder *textdecode.Decoder
	logger  *zap.Logger
}

// NewPipeline creates a converter pipeline. A nil decoder means lossy UTF-8.
func NewPipeline(profile *config.Profile, dec *textdecode.Decoder, logger *zap.Logger) (*Pipeline, error) {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	formats, err := archive.ParseFormats(profile.Converter.Formats)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		dec = textdecode.Default()
	}

	return &Pipeline{
		profile: profile.Converter,
		formats: formats,
		filter: Filter{
			Extension:    profile.TextExtension,
			SkipDirs:     profile.Converter.SkipDirs,
			SkipPrefixes: profile.Converter.SkipPrefixes,
		},
		decoder: dec,
		logger:  logging.OrNop(logger).Named("converter"),
	}, nil
}

// Run processes one archive inside a fresh workspace from provider. The
// workspace is removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, provider storage.Provider, name string, r io.Reader) (*Result, error) {
	ws, err := provider.Open()
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			p.logger.Warn("workspace cleanup failed", zap.String("workspace", ws.ID), zap.Error(err))
		}
	}()

	unpacked, err := archive.Unpack(ctx, ws, name, r, p.formats)
	if err != nil {
		p.logger.Error("extraction failed", zap.String("archive", name), zap.Error(err))
		return nil, err
	}
	p.logger.Info("archive extracted",
		zap.String("archive", name),
		zap.String("format", string(unpacked.Result.Format)),
		zap.Int("files", len(unpacked.Result.Files)))

	files, warnings := Walk(unpacked.Root, ".", p.filter)

	rows := make([]models.PrefixRow, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := p.decoder.ReadFile(unpacked.Root, f)
		if err != nil {
			warnings = append(warnings, models.Warning{Path: f, Reason: err.Error()})
			continue
		}
		rows = append(rows, models.PrefixRow{
			Prefix:  Prefix(path.Base(f)),
			Content: content,
		})
	}

	for _, w := range warnings {
		p.logger.Warn("file skipped", zap.String("path", w.Path), zap.String("reason", w.Reason))
	}
	p.logger.Info("conversion complete", zap.Int("rows", len(rows)), zap.Int("warnings", len(warnings)))

	if warnings == nil {
		warnings = make([]models.Warning, 0)
	}
	return &Result{
		Archive:   unpacked.Archive,
		Extracted: len(unpacked.Result.Files),
		Rows:      rows,
		Warnings:  warnings,
	}, nil
}

// OutputName is the fixed spreadsheet filename.
func (p *Pipeline) OutputName() string { return p.profile.OutputName }

// SheetName is the worksheet name.
func (p *Pipeline) SheetName() string { return p.profile.SheetName }
