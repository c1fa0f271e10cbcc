package models

// MatchColumns is the fixed header of the matcher spreadsheet.
var MatchColumns = []string{
	"Match ID",
	"Manifest Filename",
	"PCID Filename",
	"Manifest Content",
	"PCID Content",
}

// ManifestRecord is a text file from the Manifest folder keyed by the
// 6-character tail of its pre-hyphen segment.
type ManifestRecord struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// PCIDRecord is a text file from the PCID folder. Its Content is the
// filename stem, not the file body.
type PCIDRecord struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Match pairs one manifest and one PCID record sharing a derived key.
type Match struct {
	ID               string `json:"matchId" msgpack:"matchId"`
	ManifestFilename string `json:"manifestFilename" msgpack:"manifestFilename"`
	PCIDFilename     string `json:"pcidFilename" msgpack:"pcidFilename"`
	ManifestContent  string `json:"manifestContent" msgpack:"manifestContent"`
	PCIDContent      string `json:"pcidContent" msgpack:"pcidContent"`
}

// NewMatch joins the two records. Callers guarantee the keys are equal.
func NewMatch(m ManifestRecord, p PCIDRecord) Match {
	return Match{
		ID:               m.Key,
		ManifestFilename: m.Filename,
		PCIDFilename:     p.Filename,
		ManifestContent:  m.Content,
		PCIDContent:      p.Content,
	}
}

// Cells returns the row in MatchColumns order.
func (m Match) Cells() []string {
	return []string{m.ID, m.ManifestFilename, m.PCIDFilename, m.ManifestContent, m.PCIDContent}
}
