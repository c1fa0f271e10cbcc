package matcher

import (
	"fmt"
	"path"
	"strings"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/textdecode"
	"github.com/go-git/go-billy/v5"
)

// Match scans the manifest folder and pairs every keyed file with its PCID
// entry. Manifest content is decoded with dec and trimmed. Files that cannot
// be read or decoded are skipped with a warning.
func Match(fs billy.Filesystem, dir string, pcids *PCIDMap, opts ScanOptions, dec *textdecode.Decoder) ([]models.Match, []models.Warning, error) {
	names, err := ListTextFiles(fs, dir, opts.Extension)
	if err != nil {
		return nil, nil, err
	}

	matches := make([]models.Match, 0)
	var warnings []models.Warning
	for _, name := range names {
		p := path.Join(dir, name)

		key, ok := opts.Keyer.Manifest(name)
		if !ok {
			warnings = append(warnings, models.Warning{
				Path:   p,
				Reason: fmt.Sprintf("no derivable key: needs a hyphen after at least %d characters", opts.Keyer.Length),
			})
			continue
		}

		pcid, ok := pcids.Record(key)
		if !ok {
			continue
		}

		content, err := dec.ReadFile(fs, p)
		if err != nil {
			warnings = append(warnings, models.Warning{Path: p, Reason: err.Error()})
			continue
		}

		manifest := models.ManifestRecord{
			Key:      key,
			Filename: name,
			Content:  strings.TrimSpace(content),
		}
		matches = append(matches, models.NewMatch(manifest, pcid))
	}
	return matches, warnings, nil
}
