package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/Jehaaaa/sam-extractor/internal/archive"
	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/matcher"
	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/Jehaaaa/sam-extractor/internal/testutil"
	"github.com/Jehaaaa/sam-extractor/internal/textdecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, policy matcher.DuplicatePolicy) *Service {
	t.Helper()
	profile := config.DefaultProfile()
	profile.Matcher.Formats = []string{"rar", "zip"}

	svc, err := New(storage.NewMemory(), Options{Profile: profile, Policy: policy}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func sheetRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	return rows
}

func TestService_Match(t *testing.T) {
	data := testutil.ZipFiles(t, map[string]string{
		"File Manifest & PCID/Manifest/AAABBB-PREFIX.txt": "  hello  ",
		"File Manifest & PCID/PCID/AAABBB.txt":            "",
		"File Manifest & PCID/PCID/ZZZ.txt":               "",
	})

	out, err := newTestService(t, matcher.LastWriteWins).Match(context.Background(), "in.zip", bytes.NewReader(data))
	require.NoError(t, err)

	require.True(t, out.HasResults())
	assert.Equal(t, models.PipelineMatcher, out.Run.Kind)
	assert.Equal(t, 1, out.Run.RowCount)
	assert.Equal(t, 3, out.Run.ExtractedCount)
	assert.Equal(t, "Combined_Manifest_PCID.xlsx", out.Run.OutputName)
	assert.NotEmpty(t, out.Run.ID)
	// ZZZ.txt is too short to carry a key.
	assert.Len(t, out.Run.Warnings, 1)

	assert.Equal(t, [][]string{
		models.MatchColumns,
		{"AAABBB", "AAABBB-PREFIX.txt", "AAABBB.txt", "hello", "AAABBB"},
	}, sheetRows(t, out.Workbook))
}

func TestService_Convert(t *testing.T) {
	data := testutil.ZipFiles(t, map[string]string{
		"X-1.txt":             "a",
		"Y-2.txt":             "b",
		"__MACOSX/._junk.txt": "junk",
	})

	out, err := newTestService(t, "").Convert(context.Background(), "in.zip", bytes.NewReader(data))
	require.NoError(t, err)

	require.True(t, out.HasResults())
	assert.Equal(t, "Prefix_Content.xlsx", out.Run.OutputName)
	assert.Equal(t, [][]string{{"X", "a"}, {"Y", "b"}}, out.Sheet.Rows)
	assert.Equal(t, [][]string{
		{"Prefix", "Content"},
		{"X", "a"},
		{"Y", "b"},
	}, sheetRows(t, out.Workbook))
}

func TestService_NoResults(t *testing.T) {
	svc := newTestService(t, "")

	matchData := testutil.ZipFiles(t, map[string]string{
		"File Manifest & PCID/Manifest/AAABBB-X.txt": "a",
		"File Manifest & PCID/PCID/CCCDDD.txt":       "",
	})
	out, err := svc.Match(context.Background(), "in.zip", bytes.NewReader(matchData))
	require.NoError(t, err)
	assert.False(t, out.HasResults())
	assert.Equal(t, models.RunStatusNoResults, out.Run.Status)
	assert.Nil(t, out.Workbook)
	assert.Empty(t, out.Run.OutputName)

	convertData := testutil.ZipFiles(t, map[string]string{"image.png": "x"})
	out, err = svc.Convert(context.Background(), "in.zip", bytes.NewReader(convertData))
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusNoResults, out.Run.Status)
	assert.NotNil(t, out.Run.Warnings)
}

func TestService_Errors(t *testing.T) {
	duplicates := testutil.ZipFiles(t, map[string]string{
		"File Manifest & PCID/Manifest/AAABBB-X.txt": "a",
		"File Manifest & PCID/PCID/1AAABBB.txt":      "",
		"File Manifest & PCID/PCID/2AAABBB.txt":      "",
	})
	noLayout := testutil.ZipFiles(t, map[string]string{"loose.txt": "a"})

	_, err := newTestService(t, matcher.RejectDuplicates).Match(context.Background(), "in.zip", bytes.NewReader(duplicates))
	assert.ErrorIs(t, err, matcher.ErrDuplicateKey)

	_, err = newTestService(t, "").Match(context.Background(), "in.zip", bytes.NewReader(noLayout))
	assert.ErrorIs(t, err, matcher.ErrStructureMissing)

	_, err = newTestService(t, "").Convert(context.Background(), "in.rar", bytes.NewReader(testutil.CorruptRAR()))
	assert.ErrorIs(t, err, archive.ErrUnsupportedFormat)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Processing.DecodeMode = "strict"
	cfg.Processing.DuplicateKeyPolicy = "reject"

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, textdecode.ModeStrict, opts.Decoder.Mode())
	assert.Equal(t, matcher.RejectDuplicates, opts.Policy)
	assert.Equal(t, config.DefaultProfile(), opts.Profile)

	cfg.Processing.DecodeMode = "fuzzy"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Processing.ProfilePath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
