package render

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Options are the presentation settings passed through to the renderer.
type Options struct {
	Theme       string `yaml:"theme" json:"theme"`
	Title       string `yaml:"title" json:"title"`
	Width       int    `yaml:"width" json:"width"`
	Height      int    `yaml:"height" json:"height"`
	Interactive bool   `yaml:"interactive" json:"interactive"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Theme:       ThemeLight,
		Title:       "Claims Timeline",
		Width:       1200,
		Height:      800,
		Interactive: true,
	}
}

// Validate validates the render options. Zero dimensions mean "auto".
func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Theme, validation.In(ThemeLight, ThemeDark)),
		validation.Field(&o.Width, validation.Min(0), validation.Max(10000)),
		validation.Field(&o.Height, validation.Min(0), validation.Max(10000)),
	)
}
