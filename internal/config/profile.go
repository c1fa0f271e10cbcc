package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes the archive layout and output naming for both pipelines.
// Zero values are filled from DefaultProfile.
type Profile struct {
	TextExtension string           `json:"textExtension" yaml:"text_extension"`
	Matcher       MatcherProfile   `json:"matcher" yaml:"matcher"`
	Converter     ConverterProfile `json:"converter" yaml:"converter"`
}

// MatcherProfile configures the Manifest/PCID matcher.
type MatcherProfile struct {
	RootFolder     string   `json:"rootFolder" yaml:"root_folder"`
	ManifestFolder string   `json:"manifestFolder" yaml:"manifest_folder"`
	PCIDFolder     string   `json:"pcidFolder" yaml:"pcid_folder"`
	KeyLength      int      `json:"keyLength" yaml:"key_length"`
	Formats        []string `json:"formats" yaml:"formats"`
	OutputName     string   `json:"outputName" yaml:"output_name"`
	SheetName      string   `json:"sheetName" yaml:"sheet_name"`
}

// ConverterProfile configures the prefix/content converter.
type ConverterProfile struct {
	SkipDirs     []string `json:"skipDirs" yaml:"skip_dirs"`
	SkipPrefixes []string `json:"skipPrefixes" yaml:"skip_prefixes"`
	Formats      []string `json:"formats" yaml:"formats"`
	OutputName   string   `json:"outputName" yaml:"output_name"`
	SheetName    string   `json:"sheetName" yaml:"sheet_name"`
}

// DefaultProfile returns the layout the original tooling expects.
func DefaultProfile() *Profile {
	return &Profile{
		TextExtension: ".txt",
		Matcher: MatcherProfile{
			RootFolder:     "File Manifest & PCID",
			ManifestFolder: "Manifest",
			PCIDFolder:     "PCID",
			KeyLength:      6,
			Formats:        []string{"rar"},
			OutputName:     "Combined_Manifest_PCID.xlsx",
			SheetName:      "Sheet1",
		},
		Converter: ConverterProfile{
			SkipDirs:     []string{"__MACOSX"},
			SkipPrefixes: []string{"._"},
			Formats:      []string{"zip"},
			OutputName:   "Prefix_Content.xlsx",
			SheetName:    "Sheet1",
		},
	}
}

// LoadProfile reads a YAML profile. An empty path returns DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer file.Close()

	return ParseProfileFromReader(file)
}

// ParseProfileFromReader parses a YAML profile from an io.Reader.
func ParseProfileFromReader(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}

	p.applyDefaults(DefaultProfile())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults(d *Profile) {
	if p.TextExtension == "" {
		p.TextExtension = d.TextExtension
	}

	m := &p.Matcher
	if m.RootFolder == "" {
		m.RootFolder = d.Matcher.RootFolder
	}
	if m.ManifestFolder == "" {
		m.ManifestFolder = d.Matcher.ManifestFolder
	}
	if m.PCIDFolder == "" {
		m.PCIDFolder = d.Matcher.PCIDFolder
	}
	if m.KeyLength == 0 {
		m.KeyLength = d.Matcher.KeyLength
	}
	if len(m.Formats) == 0 {
		m.Formats = d.Matcher.Formats
	}
	if m.OutputName == "" {
		m.OutputName = d.Matcher.OutputName
	}
	if m.SheetName == "" {
		m.SheetName = d.Matcher.SheetName
	}

	c := &p.Converter
	// nil means "not set"; an explicit empty list disables skipping.
	if c.SkipDirs == nil {
		c.SkipDirs = d.Converter.SkipDirs
	}
	if c.SkipPrefixes == nil {
		c.SkipPrefixes = d.Converter.SkipPrefixes
	}
	if len(c.Formats) == 0 {
		c.Formats = d.Converter.Formats
	}
	if c.OutputName == "" {
		c.OutputName = d.Converter.OutputName
	}
	if c.SheetName == "" {
		c.SheetName = d.Converter.SheetName
	}
}

// Validate checks values that would make a pipeline misbehave.
func (p *Profile) Validate() error {
	if !strings.HasPrefix(p.TextExtension, ".") {
		return fmt.Errorf("profile: text_extension must start with '.', got %q", p.TextExtension)
	}
	if p.Matcher.KeyLength < 1 {
		return fmt.Errorf("profile: matcher.key_length must be positive, got %d", p.Matcher.KeyLength)
	}
	if p.Matcher.ManifestFolder == p.Matcher.PCIDFolder {
		return fmt.Errorf("profile: manifest_folder and pcid_folder must differ")
	}
	return nil
}
