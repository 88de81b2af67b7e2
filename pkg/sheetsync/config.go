package sheetsync

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the spreadsheet to sync against and how its columns map
// onto asset fields. It is loaded from a YAML file whose path is given to
// the server at startup.
type Config struct {
	SpreadsheetID   string `yaml:"spreadsheetId"`
	SheetName       string `yaml:"sheetName"`
	CredentialsFile string `yaml:"credentialsFile"`
	// Interval between scheduled bidirectional passes.
	Interval time.Duration `yaml:"interval"`
	// Columns maps canonical column keys (ColTag etc.) to the header names
	// used in the sheet. Unmapped keys fall back to the defaults.
	Columns map[string]string `yaml:"columns"`
	// ModifiedAtFormat is the time layout of the modified-at column.
	ModifiedAtFormat string `yaml:"modifiedAtFormat"`
}

// DefaultConfig returns a config with the standard column headers.
func DefaultConfig() Config {
	return Config{
		SheetName: "Assets",
		Interval:  15 * time.Minute,
		Columns: map[string]string{
			ColTag:          "Asset Tag",
			ColName:         "Name",
			ColCategory:     "Category",
			ColType:         "Type",
			ColSerialNumber: "Serial Number",
			ColStatus:       "Status",
			ColCondition:    "Condition",
			ColLocation:     "Location",
			ColNotes:        "Notes",
			ColModifiedAt:   "Last Modified",
		},
		ModifiedAtFormat: "2006-01-02 15:04:05",
	}
}

// LoadConfig reads a YAML sync config, filling unset fields from defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sync config: %w", err)
	}

	cfg := DefaultConfig()
	var loaded Config
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("parse sync config: %w", err)
	}

	if loaded.SpreadsheetID != "" {
		cfg.SpreadsheetID = loaded.SpreadsheetID
	}
	if loaded.SheetName != "" {
		cfg.SheetName = loaded.SheetName
	}
	if loaded.CredentialsFile != "" {
		cfg.CredentialsFile = loaded.CredentialsFile
	}
	if loaded.Interval > 0 {
		cfg.Interval = loaded.Interval
	}
	if loaded.ModifiedAtFormat != "" {
		cfg.ModifiedAtFormat = loaded.ModifiedAtFormat
	}
	for key, header := range loaded.Columns {
		cfg.Columns[key] = header
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config is usable for a live sheet.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("sync config: spreadsheetId is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("sync config: credentialsFile is required")
	}
	if c.Columns[ColTag] == "" {
		return fmt.Errorf("sync config: a tag column mapping is required")
	}
	return nil
}

// ParseModifiedAt parses a modified-at cell value using the configured
// layout. Empty cells return nil.
func (c *Config) ParseModifiedAt(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(c.ModifiedAtFormat, value)
	if err != nil {
		return nil, fmt.Errorf("parse modified-at %q: %w", value, err)
	}
	t = t.UTC()
	return &t, nil
}

// FormatModifiedAt renders a timestamp for the modified-at column.
func (c *Config) FormatModifiedAt(t time.Time) string {
	return t.UTC().Format(c.ModifiedAtFormat)
}
