// Package render turns a normalized TimelineDocument into a self-contained
// HTML page.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/starford/claimline/internal/claims"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	fallbackColor = "#7f8c8d"
	dateLayout    = "2006-01-02"
	minBarPercent = 0.5
)

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9., %]+\)|hsla?\([0-9., %]+\))$`)

// Renderer materializes a timeline as a textual artifact.
type Renderer interface {
	Render(doc *claims.TimelineDocument, opts Options) ([]byte, error)
}

// HTML renders timelines with the embedded page template. It is safe for
// concurrent use.
type HTML struct {
	tmpl *template.Template
}

// New parses the embedded template.
func New() (*HTML, error) {
	tmpl, err := template.New("timeline.html.tmpl").
		Option("missingkey=error").
		Funcs(sprig.FuncMap()).
		ParseFS(templateFS, "templates/timeline.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse template: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// Render renders doc with opts. Zero-valued options fall back to defaults
// field by field. The output depends only on its inputs.
func (h *HTML) Render(doc *claims.TimelineDocument, opts Options) ([]byte, error) {
	if doc == nil || len(doc.Items) == 0 {
		return nil, fmt.Errorf("render: %w", errEmptyDocument)
	}
	opts = withDefaults(opts)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("render: invalid options: %w", err)
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, newPage(doc, opts)); err != nil {
		return nil, fmt.Errorf("render: execute template: %w", err)
	}
	return buf.Bytes(), nil
}

var errEmptyDocument = errors.New("document has no items")

func withDefaults(o Options) Options {
	d := DefaultOptions()
	if o.Theme == "" {
		o.Theme = d.Theme
	}
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Width == 0 {
		o.Width = d.Width
	}
	if o.Height == 0 {
		o.Height = d.Height
	}
	return o
}

type page struct {
	Options  Options
	Span     claims.Interval
	Summary  claims.Summary
	Legend   []legendEntry
	Rows     []row
	Warnings []claims.Warning
	Payload  []payloadItem
}

type legendEntry struct {
	Kind     string
	Category string
	Style    template.CSS
	Count    int
}

type row struct {
	ID       string
	Kind     string
	Category string
	Label    string
	Start    string
	End      string
	Days     int
	BarStyle template.CSS
	Facts    []fact
}

type fact struct {
	Name  string
	Value string
}

// payloadItem is the compact form consumed by the page's filtering script.
type payloadItem struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func newPage(doc *claims.TimelineDocument, opts Options) page {
	p := page{
		Options:  opts,
		Span:     doc.Span,
		Summary:  doc.Summary,
		Warnings: doc.Warnings,
	}

	counts := make(map[claims.Kind]int, len(doc.Summary.Kinds))
	colors := make(map[claims.Kind]string, len(doc.Summary.Kinds))
	total := doc.Span.End.Sub(doc.Span.Start)

	for _, it := range doc.Items {
		counts[it.Kind]++
		if _, ok := colors[it.Kind]; !ok {
			colors[it.Kind] = safeColor(it.Color)
		}
		start := it.Interval.Start.UTC().Format(dateLayout)
		end := it.Interval.End.UTC().Format(dateLayout)
		offset, width := placement(doc.Span.Start, total, it.Interval)
		p.Rows = append(p.Rows, row{
			ID:       it.ID,
			Kind:     string(it.Kind),
			Category: it.Kind.Category(),
			Label:    it.Label,
			Start:    start,
			End:      end,
			Days:     int(it.Interval.End.Sub(it.Interval.Start).Hours() / 24),
			BarStyle: template.CSS(fmt.Sprintf("left:%s%%;width:%s%%;background:%s",
				percent(offset), percent(width), safeColor(it.Color))),
			Facts: facts(it.Attributes),
		})
		p.Payload = append(p.Payload, payloadItem{
			ID: it.ID, Kind: string(it.Kind), Label: it.Label, Start: start, End: end,
		})
	}

	for _, k := range doc.Summary.Kinds {
		p.Legend = append(p.Legend, legendEntry{
			Kind:     string(k),
			Category: k.Category(),
			Style:    template.CSS("background:" + colors[k]),
			Count:    counts[k],
		})
	}
	return p
}

// placement returns the bar offset and width as percentages of the span.
func placement(origin time.Time, total time.Duration, iv claims.Interval) (float64, float64) {
	if total <= 0 {
		return 0, 100
	}
	offset := float64(iv.Start.Sub(origin)) / float64(total) * 100
	width := float64(iv.End.Sub(iv.Start)) / float64(total) * 100
	if width < minBarPercent {
		width = minBarPercent
	}
	if offset+width > 100 {
		offset = 100 - width
	}
	return offset, width
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func safeColor(c string) string {
	if colorPattern.MatchString(c) {
		return c
	}
	return fallbackColor
}

func facts(a claims.Attributes) []fact {
	var out []fact
	switch {
	case a.Prescription != nil:
		rx := a.Prescription
		out = append(out,
			fact{"Dosage", rx.Dosage},
			fact{"Days supply", strconv.Itoa(rx.DaysSupply)},
			fact{"Quantity", rx.Quantity},
			fact{"Prescriber", rx.Prescriber},
			fact{"Pharmacy", rx.Pharmacy},
			fact{"NDC", rx.NDC},
			fact{"Copay", rx.Copay},
		)
	case a.Service != nil:
		svc := a.Service
		out = append(out,
			fact{"Claim", svc.ClaimID},
			fact{"Provider", svc.Provider},
			fact{"Service type", svc.ServiceType},
			fact{"Procedure code", svc.ProcedureCode},
			fact{"Charged", svc.ChargedAmount},
			fact{"Allowed", svc.AllowedAmount},
			fact{"Paid", svc.PaidAmount},
		)
	}
	// Prescription extras repeat the whole record.
	if a.Service == nil {
		return out
	}
	keys := make([]string, 0, len(a.Extra))
	for k := range a.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, fact{k, extraValue(a.Extra[k])})
	}
	return out
}

func extraValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
