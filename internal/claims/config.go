package claims

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"

	"dario.cat/mergo"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Section keys. They double as the default document paths and as the keys
// of the color map.
const (
	SectionRxTBA      = "rxTba"
	SectionRxHistory  = "rxHistory"
	SectionMedHistory = "medHistory"
)

// DefaultDateFormat is tried before the fallback formats.
const DefaultDateFormat = "YYYY-MM-DD"

// Config controls where the three sections live in a document, the
// preferred date format, and the color assigned to each section.
type Config struct {
	RxTBAPath      string            `json:"rxTbaPath" yaml:"rxTbaPath"`
	RxHistoryPath  string            `json:"rxHistoryPath" yaml:"rxHistoryPath"`
	MedHistoryPath string            `json:"medHistoryPath" yaml:"medHistoryPath"`
	DateFormat     string            `json:"dateFormat" yaml:"dateFormat"`
	Colors         map[string]string `json:"colors" yaml:"colors"`
}

// DefaultConfig returns a fresh copy of the defaults. Callers may mutate it.
func DefaultConfig() Config {
	return Config{
		RxTBAPath:      SectionRxTBA,
		RxHistoryPath:  SectionRxHistory,
		MedHistoryPath: SectionMedHistory,
		DateFormat:     DefaultDateFormat,
		Colors: map[string]string{
			SectionRxTBA:      "#e67e22",
			SectionRxHistory:  "#3498db",
			SectionMedHistory: "#27ae60",
		},
	}
}

// WithDefaults returns c with every unset field taken from DefaultConfig.
// Colors merge key-wise, so a partial override keeps the other defaults.
// c itself is left untouched.
func (c Config) WithDefaults() (Config, error) {
	out := c
	out.Colors = maps.Clone(c.Colors)
	if err := mergo.Merge(&out, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("claims: merge defaults: %w", err)
	}
	return out, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RxTBAPath, validation.Required),
		validation.Field(&c.RxHistoryPath, validation.Required),
		validation.Field(&c.MedHistoryPath, validation.Required),
		validation.Field(&c.DateFormat, validation.Required),
	)
}

// ColorFor returns the color configured for the section k belongs to.
func (c Config) ColorFor(k Kind) string {
	return c.Colors[k.Section()]
}

// LoadConfig reads a JSON claims configuration from path. Unknown fields are
// ignored and missing ones fall back to the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("claims: read config %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("claims: parse config %s: %w", path, err)
	}
	merged, err := c.WithDefaults()
	if err != nil {
		return Config{}, err
	}
	if err := merged.Validate(); err != nil {
		return Config{}, fmt.Errorf("claims: invalid config %s: %w", path, err)
	}
	return merged, nil
}
