package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/claimline/internal/claims"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleDoc() *claims.TimelineDocument {
	return &claims.TimelineDocument{
		Items: []claims.ClaimItem{
			{
				ID:       "C1-1",
				Kind:     claims.KindMedicalService,
				Label:    "<b>Office visit</b>",
				Color:    "#27ae60",
				Interval: claims.Interval{Start: day(2024, time.February, 1), End: day(2024, time.February, 3)},
				Attributes: claims.Attributes{
					Service: &claims.ServiceFacts{ClaimID: "C1", Provider: "Dr. Who", ServiceType: claims.Unknown,
						ProcedureCode: "99213", ChargedAmount: "150.00", AllowedAmount: claims.Unknown, PaidAmount: "90.10"},
					Extra: map[string]any{"zeta": "z", "modifier": "25"},
				},
			},
			{
				ID:       "rx1",
				Kind:     claims.KindPrescriptionPending,
				Label:    "Drug A",
				Color:    "url(javascript:alert(1))",
				Interval: claims.Interval{Start: day(2024, time.January, 1), End: day(2024, time.January, 31)},
				Attributes: claims.Attributes{
					Prescription: &claims.PrescriptionFacts{Dosage: "10mg", DaysSupply: 30},
				},
			},
		},
		Span: claims.Interval{Start: day(2024, time.January, 1), End: day(2024, time.February, 3)},
		Summary: claims.Summary{
			TotalItems: 2,
			Kinds:      []claims.Kind{claims.KindMedicalService, claims.KindPrescriptionPending},
		},
		Warnings: []claims.Warning{{Section: "rxTba", Position: "3", Message: "missing date"}},
	}
}

func newRenderer(t *testing.T) *HTML {
	t.Helper()
	h, err := New()
	require.NoError(t, err)
	return h
}

func TestRender_Page(t *testing.T) {
	out, err := newRenderer(t).Render(sampleDoc(), Options{Title: "Member 42"})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Member 42</title>")
	assert.Contains(t, html, `data-theme="light"`)
	assert.Contains(t, html, "2 items from Jan 1, 2024 to Feb 3, 2024")
	assert.Contains(t, html, "&lt;b&gt;Office visit&lt;/b&gt;")
	assert.NotContains(t, html, "<b>Office visit</b>")
	assert.Contains(t, html, "Medical Service (1)")
	assert.Contains(t, html, "1 skipped record")
	assert.Contains(t, html, "rxTba #3: missing date")
	assert.Less(t, strings.Index(html, "<dt>modifier</dt>"), strings.Index(html, "<dt>zeta</dt>"))
}

func TestRender_UnsafeColorFallsBack(t *testing.T) {
	out, err := newRenderer(t).Render(sampleDoc(), Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "javascript")
	assert.Contains(t, string(out), "background:"+fallbackColor)
}

func TestRender_InteractivePayload(t *testing.T) {
	out, err := newRenderer(t).Render(sampleDoc(), Options{Interactive: true})
	require.NoError(t, err)
	html := string(out)

	const open = `<script type="application/json" id="timeline-data">`
	i := strings.Index(html, open)
	require.GreaterOrEqual(t, i, 0)
	rest := html[i+len(open):]
	raw := rest[:strings.Index(rest, "</script>")]

	var payload []payloadItem
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload))
	require.Len(t, payload, 2)
	assert.Equal(t, payloadItem{ID: "rx1", Kind: "prescription-pending", Label: "Drug A", Start: "2024-01-01", End: "2024-01-31"}, payload[1])
}

func TestRender_StaticPage(t *testing.T) {
	out, err := newRenderer(t).Render(sampleDoc(), Options{Theme: ThemeDark, Interactive: false})
	require.NoError(t, err)
	html := string(out)
	assert.NotContains(t, html, "<script")
	assert.Contains(t, html, `data-theme="dark"`)
	assert.Contains(t, html, `class="rows static"`)
}

func TestRender_Deterministic(t *testing.T) {
	h := newRenderer(t)
	a, err := h.Render(sampleDoc(), DefaultOptions())
	require.NoError(t, err)
	b, err := h.Render(sampleDoc(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_Errors(t *testing.T) {
	h := newRenderer(t)
	_, err := h.Render(&claims.TimelineDocument{}, Options{})
	assert.Error(t, err)

	_, err = h.Render(sampleDoc(), Options{Theme: "neon"})
	assert.Error(t, err)
}

func TestPlacement(t *testing.T) {
	origin := day(2024, time.January, 1)
	total := day(2024, time.January, 11).Sub(origin)

	offset, width := placement(origin, total, claims.Interval{Start: day(2024, time.January, 6), End: day(2024, time.January, 11)})
	assert.InDelta(t, 50, offset, 0.001)
	assert.InDelta(t, 50, width, 0.001)

	offset, width = placement(origin, total, claims.Interval{Start: day(2024, time.January, 11), End: day(2024, time.January, 11)})
	assert.InDelta(t, 100-minBarPercent, offset, 0.001)
	assert.InDelta(t, minBarPercent, width, 0.001)

	offset, width = placement(origin, 0, claims.Interval{Start: origin, End: origin})
	assert.Equal(t, 0.0, offset)
	assert.Equal(t, 100.0, width)
}
