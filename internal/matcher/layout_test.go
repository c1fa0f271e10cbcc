package matcher

import (
	"errors"
	"testing"

	"github.com/Jehaaaa/sam-extractor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name     string
		tree     map[string]string
		wantRoot string
		wantErr  bool
	}{
		{
			name: "preferred root",
			tree: map[string]string{
				"File Manifest & PCID/Manifest/": "",
				"File Manifest & PCID/PCID/":     "",
				"Another/Manifest/":              "",
				"Another/PCID/":                  "",
			},
			wantRoot: "File Manifest & PCID",
		},
		{
			name: "renamed root found by search",
			tree: map[string]string{
				"Zeta/Manifest/":  "",
				"Zeta/PCID/":      "",
				"Alpha/Manifest/": "",
				"Alpha/PCID/":     "",
			},
			wantRoot: "Alpha",
		},
		{
			name: "folders at archive top level",
			tree: map[string]string{
				"Manifest/a.txt": "",
				"PCID/b.txt":     "",
			},
			wantRoot: ".",
		},
		{
			name: "nested two levels",
			tree: map[string]string{
				"outer/inner/Manifest/": "",
				"outer/inner/PCID/":     "",
			},
			wantRoot: "outer/inner",
		},
		{
			name: "pcid folder missing",
			tree: map[string]string{
				"File Manifest & PCID/Manifest/": "",
			},
			wantErr: true,
		},
		{
			name: "pcid is a file",
			tree: map[string]string{
				"File Manifest & PCID/Manifest/": "",
				"File Manifest & PCID/PCID":      "not a dir",
			},
			wantErr: true,
		},
		{
			name:    "empty archive",
			tree:    map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testutil.MemTree(t, tt.tree)

			layout, err := Locate(fs, "File Manifest & PCID", "Manifest", "PCID")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrStructureMissing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, layout.Root)
		})
	}
}

func TestLocate_Paths(t *testing.T) {
	fs := testutil.MemTree(t, map[string]string{
		"Root/Manifest/": "",
		"Root/PCID/":     "",
	})

	layout, err := Locate(fs, "Root", "Manifest", "PCID")
	require.NoError(t, err)
	assert.Equal(t, "Root/Manifest", layout.ManifestDir)
	assert.Equal(t, "Root/PCID", layout.PCIDDir)
}
