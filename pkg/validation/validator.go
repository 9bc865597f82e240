// Package validation implements the segmentation quality engine: a set of
// independent checks over a label volume, a conservative cleanup pass that
// removes small disconnected components and thin edge artifacts, and the
// orchestrator combining both into a single result.
package validation

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"segqc/pkg/catalog"
	"segqc/pkg/components"
	"segqc/pkg/volume"
)

// affineTolerance is the absolute per-element tolerance when comparing the
// segmentation affine against the reference scan affine.
const affineTolerance = 1e-3

// Config holds the validation and cleanup thresholds. It is supplied by the
// caller per invocation and never mutated.
type Config struct {
	// MinVoxelsPerLabel is the voxel count below which a label is reported
	// as suspiciously small.
	MinVoxelsPerLabel int

	// MinVoxelsPerComponent is the voxel count below which a connected
	// component is reported as noise and removed by cleanup.
	MinVoxelsPerComponent int

	// MaxSegmentationRatio is the labeled-voxel fraction above which the
	// volume is flagged as possibly over-segmented.
	MaxSegmentationRatio float64

	// MinSegmentationRatio is the labeled-voxel fraction below which the
	// volume is flagged as possibly under-segmented.
	MinSegmentationRatio float64

	// EnableCleanup controls whether the orchestrator attempts cleanup when
	// the checks report any issue.
	EnableCleanup bool
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinVoxelsPerLabel:     10,
		MinVoxelsPerComponent: 10,
		MaxSegmentationRatio:  0.95,
		MinSegmentationRatio:  0.001,
		EnableCleanup:         true,
	}
}

// Findings is the immutable outcome of one check. Errors mark structural
// problems and make the overall result invalid; warnings are quality
// observations and never affect validity.
type Findings struct {
	Warnings []string
	Errors   []string
}

func (f Findings) empty() bool {
	return len(f.Warnings) == 0 && len(f.Errors) == 0
}

// Validator runs quality checks over label volumes. Checks never mutate
// their inputs and can be used independently of the orchestrator.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// CheckDimensions verifies the segmentation geometry and, when a reference
// scan is supplied, that shape and affine agree with it. A nil reference
// degrades to the standalone geometry check.
func (v *Validator) CheckDimensions(seg, ref *volume.Volume) Findings {
	var f Findings

	if seg.Dims[0] < 1 || seg.Dims[1] < 1 || seg.Dims[2] < 1 ||
		len(seg.Data) != seg.Dims[0]*seg.Dims[1]*seg.Dims[2] {
		f.Errors = append(f.Errors,
			fmt.Sprintf("Segmentation has invalid dimensions: %v", seg.Dims))
		return f
	}

	if ref != nil {
		if seg.Dims != ref.Dims {
			f.Errors = append(f.Errors, fmt.Sprintf(
				"Dimension mismatch: segmentation %v != input %v", seg.Dims, ref.Dims))
		}
		if !mat.EqualApprox(seg.Affine, ref.Affine, affineTolerance) {
			f.Errors = append(f.Errors,
				"Affine matrix mismatch between segmentation and input")
		}
	}
	return f
}

// CheckLabels verifies that every nonzero label in the volume is known to
// the catalog. Unknown labels aggregate into a single warning listing at
// most the first 10; negative label values are an error.
func (v *Validator) CheckLabels(seg *volume.Volume, cat *catalog.Catalog) Findings {
	var f Findings

	var unknown []int32
	var negative []int32
	for _, id := range seg.Labels() {
		if id < 0 {
			negative = append(negative, id)
			continue
		}
		if !cat.Has(int(id)) {
			unknown = append(unknown, id)
		}
	}

	if len(unknown) > 0 {
		shown := unknown
		suffix := ""
		if len(unknown) > 10 {
			shown = unknown[:10]
			suffix = fmt.Sprintf(" (showing first 10 of %d)", len(unknown))
		}
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Found %d unknown label(s): %v%s", len(unknown), shown, suffix))
	}
	if len(negative) > 0 {
		f.Errors = append(f.Errors,
			fmt.Sprintf("Found negative label IDs: %v", negative))
	}
	return f
}

// CheckVoxelCounts verifies the overall segmentation ratio against the
// configured band and reports labels carrying fewer voxels than
// MinVoxelsPerLabel, at most 5 named per warning.
func (v *Validator) CheckVoxelCounts(seg *volume.Volume, cat *catalog.Catalog) Findings {
	var f Findings

	total := seg.TotalVoxels()
	segmented := seg.CountNonzero()
	ratio := 0.0
	if total > 0 {
		ratio = float64(segmented) / float64(total)
	}

	if ratio > v.cfg.MaxSegmentationRatio {
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Segmentation covers %.1f%% of volume (exceeds %.1f%% threshold) - possible over-segmentation",
			ratio*100, v.cfg.MaxSegmentationRatio*100))
	} else if ratio < v.cfg.MinSegmentationRatio {
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Segmentation covers only %.1f%% of volume (below %.1f%% threshold) - possible under-segmentation",
			ratio*100, v.cfg.MinSegmentationRatio*100))
	}

	counts := seg.LabelCounts()
	var small []string
	for _, id := range seg.Labels() {
		count := counts[id]
		if count < v.cfg.MinVoxelsPerLabel {
			name, ok := cat.Name(int(id))
			if !ok {
				name = fmt.Sprintf("Label %d", id)
			}
			small = append(small, fmt.Sprintf("%s (ID: %d): %d voxels", name, id, count))
		}
	}
	if len(small) > 0 {
		shown := small
		suffix := ""
		if len(small) > 5 {
			shown = small[:5]
			suffix = fmt.Sprintf(" (showing first 5 of %d)", len(small))
		}
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Found %d label(s) with < %d voxels: %s%s",
			len(small), v.cfg.MinVoxelsPerLabel, strings.Join(shown, ", "), suffix))
	}
	return f
}

// CheckSpatialConsistency labels the connected components of every present
// label and counts the ones smaller than MinVoxelsPerComponent. Fragments
// below the threshold aggregate into a single warning.
func (v *Validator) CheckSpatialConsistency(seg *volume.Volume) Findings {
	var f Findings

	totalSmall := 0
	for _, id := range seg.Labels() {
		ids, count := components.Label(seg.Mask(id), seg.Dims)
		for _, size := range components.Sizes(ids, count) {
			if size < v.cfg.MinVoxelsPerComponent {
				totalSmall++
			}
		}
	}
	if totalSmall > 0 {
		f.Warnings = append(f.Warnings, fmt.Sprintf(
			"Found %d small isolated component(s) (< %d voxels each) - possible noise",
			totalSmall, v.cfg.MinVoxelsPerComponent))
	}
	return f
}

// CheckStatistics inspects the label distribution. A segmentation holding
// only background is a terminal error for this check; otherwise a label
// covering more than 90% of the segmented voxels is reported as dominating.
func (v *Validator) CheckStatistics(seg *volume.Volume) Findings {
	var f Findings

	counts := seg.LabelCounts()
	if len(counts) == 0 {
		f.Errors = append(f.Errors, "Segmentation is completely empty (only background)")
		return f
	}

	totalSegmented := 0
	for _, c := range counts {
		totalSegmented += c
	}

	maxCount := 0
	var maxLabel int32
	for _, id := range seg.Labels() {
		if counts[id] > maxCount {
			maxCount = counts[id]
			maxLabel = id
		}
	}

	if totalSegmented > 0 {
		maxRatio := float64(maxCount) / float64(totalSegmented)
		if maxRatio > 0.9 {
			f.Warnings = append(f.Warnings, fmt.Sprintf(
				"Single label (ID: %d) dominates segmentation (%.1f%% of segmented voxels)",
				maxLabel, maxRatio*100))
		}
	}
	return f
}
