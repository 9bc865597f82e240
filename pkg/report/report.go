// Package report renders a validation result into a human-readable markdown
// report. Generation is a pure function: the same result, metadata and
// configuration always produce the same text.
package report

import (
	"fmt"
	"strings"
	"time"

	"segqc/pkg/catalog"
	"segqc/pkg/validation"
)

// Meta identifies the scan a report describes. GeneratedAt is supplied by
// the caller so that report generation stays deterministic.
type Meta struct {
	PatientID   string
	ScanName    string
	InputFile   string
	RunID       string
	GeneratedAt time.Time
}

// Generate renders the markdown validation report: overall status,
// statistics, cleanup statistics when cleanup ran, errors, warnings, the
// configuration used, a per-label status table and rule-based
// recommendations.
func Generate(res *validation.Result, cat *catalog.Catalog, meta Meta, cfg validation.Config) string {
	var b strings.Builder

	b.WriteString("# Segmentation Validation Report\n\n")
	fmt.Fprintf(&b, "**Patient ID:** %s\n", meta.PatientID)
	fmt.Fprintf(&b, "**Scan:** %s\n", meta.ScanName)
	fmt.Fprintf(&b, "**Input File:** %s\n", meta.InputFile)
	if meta.RunID != "" {
		fmt.Fprintf(&b, "**Run ID:** %s\n", meta.RunID)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("---\n\n")

	writeStatus(&b, res)
	writeStats(&b, res)
	writeIssues(&b, res)
	writeConfig(&b, cfg)
	writeLabelTable(&b, res, cat)
	writeRecommendations(&b, res)

	b.WriteString("---\n\n")
	b.WriteString("*This report was automatically generated by the segmentation validation system.*\n")
	return b.String()
}

func writeStatus(b *strings.Builder, res *validation.Result) {
	b.WriteString("## Overall Status\n\n")
	switch {
	case res.Valid && len(res.Warnings) == 0:
		b.WriteString("✅ **PASSED** - No issues detected\n")
	case res.Valid:
		fmt.Fprintf(b, "⚠️ **PASSED WITH WARNINGS** - %d warning(s) found\n", len(res.Warnings))
	default:
		fmt.Fprintf(b, "❌ **FAILED** - %d error(s) found\n", len(res.Errors))
	}
	b.WriteString("\n")
}

func writeStats(b *strings.Builder, res *validation.Result) {
	b.WriteString("## Statistics\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	fmt.Fprintf(b, "| Total Voxels | %d |\n", res.Stats.TotalVoxels)
	fmt.Fprintf(b, "| Segmented Voxels | %d |\n", res.Stats.SegmentedVoxels)
	fmt.Fprintf(b, "| Segmentation Ratio | %.2f%% |\n", res.Stats.SegmentationRatio*100)
	fmt.Fprintf(b, "| Number of Labels | %d |\n", res.Stats.NumLabels)
	if len(res.Stats.LabelIDs) > 0 {
		ids := make([]string, len(res.Stats.LabelIDs))
		for i, id := range res.Stats.LabelIDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintf(b, "| Label IDs | %s |\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(b, "| Label Entropy | %.3f |\n", res.Stats.LabelEntropy)

	if res.Cleaned {
		b.WriteString("\n### Cleanup Statistics\n\n")
		b.WriteString("| Operation | Count |\n")
		b.WriteString("|-----------|-------|\n")
		fmt.Fprintf(b, "| Small Components Removed | %d |\n", res.Stats.ComponentsRemoved)
		fmt.Fprintf(b, "| Artifact Voxels Removed | %d |\n", res.Stats.ArtifactsRemoved)
	}
	b.WriteString("\n")
}

func writeIssues(b *strings.Builder, res *validation.Result) {
	if len(res.Errors) > 0 {
		b.WriteString("## Errors\n\n")
		for i, e := range res.Errors {
			fmt.Fprintf(b, "%d. ❌ %s\n", i+1, e)
		}
		b.WriteString("\n")
	}
	if len(res.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for i, w := range res.Warnings {
			fmt.Fprintf(b, "%d. ⚠️ %s\n", i+1, w)
		}
		b.WriteString("\n")
	}
}

func writeConfig(b *strings.Builder, cfg validation.Config) {
	b.WriteString("## Validation Configuration\n\n")
	b.WriteString("| Setting | Value |\n")
	b.WriteString("|---------|-------|\n")
	fmt.Fprintf(b, "| Cleanup Enabled | %t |\n", cfg.EnableCleanup)
	fmt.Fprintf(b, "| Min Voxels per Label | %d |\n", cfg.MinVoxelsPerLabel)
	fmt.Fprintf(b, "| Min Voxels per Component | %d |\n", cfg.MinVoxelsPerComponent)
	fmt.Fprintf(b, "| Max Segmentation Ratio | %g |\n", cfg.MaxSegmentationRatio)
	fmt.Fprintf(b, "| Min Segmentation Ratio | %g |\n", cfg.MinSegmentationRatio)
	b.WriteString("\n")
}

func writeLabelTable(b *strings.Builder, res *validation.Result, cat *catalog.Catalog) {
	if len(res.Stats.LabelIDs) == 0 {
		return
	}
	b.WriteString("## Label Details\n\n")
	b.WriteString("| Label ID | Label Name | Status |\n")
	b.WriteString("|----------|-----------|--------|\n")
	for _, id := range res.Stats.LabelIDs {
		name, known := cat.Name(int(id))
		if !known {
			name = fmt.Sprintf("Unknown (ID: %d)", id)
		}
		count := labelWarningCount(res.Warnings, id, name, known)
		status := "✅ OK"
		if count > 0 {
			status = fmt.Sprintf("⚠️ %d warning(s)", count)
		}
		fmt.Fprintf(b, "| %d | %s | %s |\n", id, name, status)
	}
	b.WriteString("\n")
}

// labelWarningCount attributes warnings to a label by the "ID: n" marker the
// checks embed, or by the catalog name when one exists.
func labelWarningCount(warnings []string, id int32, name string, known bool) int {
	idTag := fmt.Sprintf("ID: %d)", id)
	count := 0
	for _, w := range warnings {
		if strings.Contains(w, idTag) || (known && strings.Contains(w, name)) {
			count++
		}
	}
	return count
}

func writeRecommendations(b *strings.Builder, res *validation.Result) {
	b.WriteString("## Recommendations\n\n")

	var recs []string
	if len(res.Errors) > 0 {
		recs = append(recs, "- **Review errors immediately** - Critical issues detected that may affect segmentation quality")
	}
	if len(res.Warnings) > 5 {
		recs = append(recs, "- **Multiple warnings detected** - Consider reviewing segmentation parameters or input image quality")
	}
	if res.Stats.SegmentationRatio > 0.9 {
		recs = append(recs, "- **High segmentation ratio** - Segmentation covers most of the volume. Verify this is expected for your use case.")
	}
	if res.Stats.SegmentationRatio < 0.01 {
		recs = append(recs, "- **Low segmentation ratio** - Segmentation covers very little of the volume. Consider checking if target structures are present in the image.")
	}
	if res.Stats.NumLabels == 0 {
		recs = append(recs, "- **No labels found** - Segmentation appears empty. Check if segmentation completed successfully.")
	}
	if res.Cleaned {
		recs = append(recs, "- **Cleanup was applied** - Review cleaned segmentation to ensure valid structures were not removed")
	}
	if len(recs) == 0 {
		recs = append(recs, "- **No issues detected** - Segmentation quality appears good")
	}

	for _, r := range recs {
		b.WriteString(r + "\n")
	}
	b.WriteString("\n")
}
