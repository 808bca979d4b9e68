package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/claims"
	"github.com/starford/claimline/internal/index"
	"github.com/starford/claimline/internal/timelines"
)

const dateLayout = "2006-01-02"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#27AE60")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E67E22"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + " " + fmt.Sprint(value)
}

func kindList(kinds []claims.Kind) string {
	if len(kinds) == 0 {
		return "-"
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func spanText(iv claims.Interval) string {
	return iv.Start.Format(dateLayout) + " .. " + iv.End.Format(dateLayout)
}

func spanPtrText(start, end *time.Time) string {
	if start == nil || end == nil {
		return "-"
	}
	return spanText(claims.Interval{Start: *start, End: *end})
}

func renderSummary(src, dst string, doc *claims.TimelineDocument) string {
	var b strings.Builder
	b.WriteString(okStyle.Render("rendered") + " " + src + " -> " + dst + "\n")
	b.WriteString("  " + strings.Join([]string{
		field("items", doc.Summary.TotalItems),
		field("span", spanText(doc.Span)),
		field("kinds", kindList(doc.Summary.Kinds)),
	}, "  ") + "\n")
	if len(doc.Warnings) > 0 {
		b.WriteString("  " + warnStyle.Render(fmt.Sprintf("%d warning(s)", len(doc.Warnings))) + "\n")
		for _, w := range doc.Warnings {
			b.WriteString(fmt.Sprintf("    %s #%s: %s\n", w.Section, w.Position, w.Message))
		}
	}
	return b.String()
}

func batchSummary(root string, res *batch.Result) string {
	lines := []string{
		titleStyle.Render("Batch " + root),
		strings.Join([]string{
			field("scanned", res.FilesScanned),
			okStyle.Render(fmt.Sprintf("%d succeeded", res.FilesSucceeded)),
			failStyle.Render(fmt.Sprintf("%d failed", res.FilesFailed)),
		}, "  "),
		strings.Join([]string{
			field("items", res.Aggregate.TotalItems),
			field("kinds", kindList(res.Aggregate.Kinds)),
		}, "  "),
	}
	if res.Aggregate.Span != nil {
		lines = append(lines, field("span", spanText(*res.Aggregate.Span)))
	}
	if len(res.Outputs) > 0 {
		lines = append(lines, "", labelStyle.Render("outputs"))
		for _, o := range res.Outputs {
			lines = append(lines, "  "+relTo(root, o.Source)+" -> "+o.Output)
		}
	}
	if len(res.Errors) > 0 {
		lines = append(lines, "", failStyle.Render("errors"))
		for _, e := range res.Errors {
			lines = append(lines, "  "+e.Error())
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func scanSummary(root string, entries []batch.ScanEntry) string {
	if len(entries) == 0 {
		return labelStyle.Render("no json files under "+root) + "\n"
	}
	valid := 0
	var b strings.Builder
	for _, e := range entries {
		if e.Valid {
			valid++
			b.WriteString(okStyle.Render("valid  ") + " " + e.RelPath + "  " +
				labelStyle.Render(fmt.Sprintf("%d item(s), %s", e.ItemCount, kindList(e.Kinds))) + "\n")
			continue
		}
		b.WriteString(failStyle.Render("invalid") + " " + e.RelPath + "  " + labelStyle.Render(e.Error) + "\n")
	}
	head := titleStyle.Render("Scan "+root) + "  " + field("files", len(entries)) + "  " + field("valid", valid) + "\n"
	return head + b.String()
}

func exportSummary(res *timelines.ExportResult) string {
	var b strings.Builder
	b.WriteString(okStyle.Render("exported") + " " + res.Path + "  " +
		field("files", res.Files) + "  " + field("rows", res.Rows) + "\n")
	for _, e := range res.Errors {
		b.WriteString("  " + failStyle.Render("skipped") + " " + e.Error() + "\n")
	}
	return b.String()
}

func historySummary(runs []index.RunRow) string {
	if len(runs) == 0 {
		return labelStyle.Render("no runs recorded") + "\n"
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(titleStyle.Render(fmt.Sprintf("#%d", r.ID)) + " " +
			r.StartedAt.Local().Format("2006-01-02 15:04:05") + "  " + r.Root + "\n")
		b.WriteString("  " + strings.Join([]string{
			field("scanned", r.FilesScanned),
			field("succeeded", r.FilesSucceeded),
			field("failed", r.FilesFailed),
			field("items", r.TotalItems),
			field("span", spanPtrText(r.SpanStart, r.SpanEnd)),
		}, "  ") + "\n")
		for _, e := range r.Errors {
			b.WriteString("  " + failStyle.Render(e.Name) + ": " + e.Message + "\n")
		}
	}
	return b.String()
}

// relTo shortens path relative to root for display.
func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}
