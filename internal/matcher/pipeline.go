package matcher

import (
	"context"
	"fmt"
	"io"

	"github.com/Jehaaaa/sam-extractor/internal/archive"
	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/logging"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/textdecode"
	"go.uber.org/zap"
)

// Result is the outcome of one matcher run.
type Result struct {
	Archive   *models.FileInfo `json:"archive"`
	Layout    *Layout          `json:"layout"`
	Extracted int              `json:"extracted"`
	PCIDKeys  int              `json:"pcidKeys"`
	Matches   []models.Match   `json:"matches"`
	Warnings  []models.Warning `json:"warnings"`
}

// Pipeline runs extract -> locate -> build PCID map -> match.
type Pipeline struct {
	profile config.MatcherProfile
	formats []archive.Format
	scan    ScanOptions
	decoder *textdecode.Decoder
	logger  *zap.Logger
}

// NewPipeline creates a matcher pipeline. A nil decoder means lossy UTF-8.
func NewPipeline(profile *config.Profile, policy DuplicatePolicy, dec *textdecode.Decoder, logger *zap.Logger) (*Pipeline, error) {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	formats, err := archive.ParseFormats(profile.Matcher.Formats)
	if err != nil {
		return nil, err
	}
	if dec == nil {
		dec = textdecode.Default()
	}
	if policy == "" {
		policy = LastWriteWins
	}

	return &Pipeline{
		profile: profile.Matcher,
		formats: formats,
		scan: ScanOptions{
			Keyer:     Keyer{Length: profile.Matcher.KeyLength},
			Extension: profile.TextExtension,
			Policy:    policy,
		},
		decoder: dec,
		logger:  logging.OrNop(logger).Named("matcher"),
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

	layout, err := Locate(unpacked.Root, p.profile.RootFolder, p.profile.ManifestFolder, p.profile.PCIDFolder)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pcids, warnings, err := BuildPCIDMap(unpacked.Root, layout.PCIDDir, p.scan)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, matchWarnings, err := Match(unpacked.Root, layout.ManifestDir, pcids, p.scan, p.decoder)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, matchWarnings...)

	for _, w := range warnings {
		p.logger.Warn("file skipped or replaced", zap.String("path", w.Path), zap.String("reason", w.Reason))
	}
	p.logger.Info("matching complete",
		zap.String("root", layout.Root),
		zap.Int("pcidKeys", pcids.Len()),
		zap.Int("matches", len(matches)))

	if warnings == nil {
		warnings = make([]models.Warning, 0)
	}
	return &Result{
		Archive:   unpacked.Archive,
		Layout:    layout,
		Extracted: len(unpacked.Result.Files),
		PCIDKeys:  pcids.Len(),
		Matches:   matches,
		Warnings:  warnings,
	}, nil
}

// OutputName is the fixed spreadsheet filename.
func (p *Pipeline) OutputName() string { return p.profile.OutputName }

// SheetName is the worksheet name.
func (p *Pipeline) SheetName() string { return p.profile.SheetName }
