package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Jehaaaa/sam-extractor/internal/service"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type pipelineKind int

const (
	pipelineMatch pipelineKind = iota
	pipelineConvert
)

type pipelineFlags struct {
	output           string
	profile          string
	charset          string
	strict           bool
	rejectDuplicates bool
	inMemory         bool
}

func newPipelineCmd(a *app, kind pipelineKind) *cobra.Command {
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, a, kind, flags, args[0])
		},
	}

	switch kind {
	case pipelineMatch:
		cmd.Use = "match ARCHIVE"
		cmd.Short = "Match Manifest and PCID files of an archive"
		cmd.Long = `Extracts the archive, pairs every Manifest file with the PCID file sharing
its 6-character key and writes the matches to Combined_Manifest_PCID.xlsx.`
		cmd.Flags().BoolVar(&flags.rejectDuplicates, "reject-duplicates", false, "fail when two PCID files share a key")
	case pipelineConvert:
		cmd.Use = "convert ARCHIVE"
		cmd.Short = "Convert every text file of an archive into a (Prefix, Content) row"
		cmd.Long = `Extracts the archive and writes one row per text file to Prefix_Content.xlsx.
The prefix is the part of the filename before the first hyphen.`
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "spreadsheet path (default: the fixed output name in the current directory)")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "YAML layout profile")
	cmd.Flags().StringVar(&flags.charset, "charset", "", "source text charset, e.g. windows-1252")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "skip files that are not valid text instead of dropping bad bytes")
	cmd.Flags().BoolVar(&flags.inMemory, "in-memory", false, "extract in memory instead of the temp directory")
	return cmd
}

func runPipeline(cmd *cobra.Command, a *app, kind pipelineKind, flags *pipelineFlags, archivePath string) error {
	cfg := *a.cfg
	if flags.profile != "" {
		cfg.Processing.ProfilePath = flags.profile
	}
	if flags.charset != "" {
		cfg.Processing.SourceCharset = flags.charset
	}
	if flags.strict {
		cfg.Processing.DecodeMode = "strict"
	}
	if flags.rejectDuplicates {
		cfg.Processing.DuplicateKeyPolicy = "reject"
	}

	opts, err := service.OptionsFromConfig(&cfg)
	if err != nil {
		return err
	}

	var provider storage.Provider
	if flags.inMemory {
		provider = storage.NewMemory()
	} else {
		scratch, err := storage.NewScratch(cfg.GetTempDir())
		if err != nil {
			return err
		}
		provider = scratch
	}

	svc, err := service.New(provider, opts, a.logger)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := filepath.Base(archivePath)
	run := svc.Match
	if kind == pipelineConvert {
		run = svc.Convert
	}
	outcome, err := run(ctx, name, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range outcome.Run.Warnings {
		fmt.Fprintf(out, "warning: %s: %s\n", w.Path, w.Reason)
	}

	if !outcome.HasResults() {
		fmt.Fprintf(out, "warning: %s produced no rows; no spreadsheet written\n", name)
		return nil
	}

	dest := flags.output
	if dest == "" {
		dest = outcome.Run.OutputName
	}
	if err := os.WriteFile(dest, outcome.Workbook, 0644); err != nil {
		return fmt.Errorf("writing spreadsheet: %w", err)
	}

	a.logger.Info("spreadsheet written",
		zap.String("path", dest),
		zap.Int("rows", outcome.Run.RowCount),
		zap.Int64("ms", outcome.Run.ProcessingTimeMs))
	fmt.Fprintf(out, "%d rows written to %s\n", outcome.Run.RowCount, dest)
	return nil
}
