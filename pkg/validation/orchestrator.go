package validation

import (
	"gonum.org/v1/gonum/stat"

	"segqc/pkg/catalog"
	"segqc/pkg/volume"
)

// Stats summarizes one validated volume. Cleanup counters stay zero unless
// cleanup actually changed anything.
type Stats struct {
	TotalVoxels       int
	SegmentedVoxels   int
	SegmentationRatio float64
	NumLabels         int
	LabelIDs          []int32

	// LabelEntropy is the Shannon entropy (nats) of the per-label share of
	// segmented voxels; 0 for an empty or single-label segmentation.
	LabelEntropy float64

	ComponentsRemoved int
	ArtifactsRemoved  int
}

// Result is the single output of ValidateAndClean, immutable once returned.
type Result struct {
	// Valid is true iff no check reported an error. Warnings never affect it.
	Valid    bool
	Warnings []string
	Errors   []string
	Stats    Stats

	// Cleaned reports whether cleanup ran and actually modified the volume.
	// CleanedVolume is nil unless Cleaned is true; callers decide whether to
	// persist it in place of the original.
	Cleaned       bool
	CleanedVolume *volume.Volume
}

// ValidateAndClean runs every quality check over the segmentation, merges
// their findings in check order, and, when cleanup is enabled and any issue
// was found, attempts remediation: small-component removal first, then edge
// artifact cleanup on the already-decluttered volume. The reference volume
// and catalog checks degrade gracefully: ref may be nil and the catalog may
// be empty.
func ValidateAndClean(seg, ref *volume.Volume, cat *catalog.Catalog, cfg Config) *Result {
	res := &Result{Valid: true}

	labels := seg.Labels()
	total := seg.TotalVoxels()
	segmented := seg.CountNonzero()
	ratio := 0.0
	if total > 0 {
		ratio = float64(segmented) / float64(total)
	}
	res.Stats = Stats{
		TotalVoxels:       total,
		SegmentedVoxels:   segmented,
		SegmentationRatio: ratio,
		NumLabels:         len(labels),
		LabelIDs:          labels,
		LabelEntropy:      labelEntropy(seg, labels, segmented),
	}

	validator := NewValidator(cfg)
	merge(res, validator.CheckDimensions(seg, ref))
	merge(res, validator.CheckLabels(seg, cat))
	merge(res, validator.CheckVoxelCounts(seg, cat))
	merge(res, validator.CheckSpatialConsistency(seg))
	merge(res, validator.CheckStatistics(seg))
	res.Valid = len(res.Errors) == 0

	// Cleanup is remediation, not a default pass: it runs only when enabled
	// and something was flagged, and the result counts as cleaned only when
	// a removal actually happened.
	if cfg.EnableCleanup && (len(res.Warnings) > 0 || len(res.Errors) > 0) {
		cleaner := NewCleaner(cfg)
		cleaned, removed := cleaner.RemoveSmallComponents(seg, cfg.MinVoxelsPerComponent)
		cleaned, artifacts := cleaner.CleanArtifacts(cleaned)

		if removed > 0 || artifacts > 0 {
			res.Cleaned = true
			res.CleanedVolume = cleaned
			res.Stats.ComponentsRemoved = removed
			res.Stats.ArtifactsRemoved = artifacts
		}
	}
	return res
}

func merge(res *Result, f Findings) {
	res.Warnings = append(res.Warnings, f.Warnings...)
	res.Errors = append(res.Errors, f.Errors...)
}

func labelEntropy(seg *volume.Volume, labels []int32, segmented int) float64 {
	if segmented == 0 || len(labels) == 0 {
		return 0
	}
	counts := seg.LabelCounts()
	shares := make([]float64, 0, len(labels))
	for _, id := range labels {
		shares = append(shares, float64(counts[id])/float64(segmented))
	}
	return stat.Entropy(shares)
}
