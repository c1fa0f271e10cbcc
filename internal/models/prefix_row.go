package models

// PrefixColumns is the fixed header of the converter spreadsheet.
var PrefixColumns = []string{"Prefix", "Content"}

// PrefixRow is one converted text file.
type PrefixRow struct {
	Prefix  string `json:"prefix" msgpack:"prefix"`
	Content string `json:"content" msgpack:"content"`
}

// Cells returns the row in PrefixColumns order.
func (r PrefixRow) Cells() []string {
	return []string{r.Prefix, r.Content}
}
