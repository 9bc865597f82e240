package validation

import (
	"strings"
	"testing"

	"segqc/pkg/catalog"
	"segqc/pkg/volume"
)

// newVolume creates a zero-filled test volume, failing the test on error.
func newVolume(t *testing.T, dims [3]int) *volume.Volume {
	t.Helper()
	vol, err := volume.New(dims, nil)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// newCatalog builds a catalog from id/name pairs.
func newCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	return cat
}

// fillBlock labels a box of voxels [x0,x1) x [y0,y1) x [z0,z1).
func fillBlock(vol *volume.Volume, label int32, x0, x1, y0, y1, z0, z1 int) {
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				vol.Set(x, y, z, label)
			}
		}
	}
}

func TestCheckDimensions(t *testing.T) {
	v := NewValidator(DefaultConfig())

	t.Run("NoReference", func(t *testing.T) {
		f := v.CheckDimensions(newVolume(t, [3]int{8, 8, 8}), nil)
		if !f.empty() {
			t.Errorf("Expected no findings without a reference, got %+v", f)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		seg := newVolume(t, [3]int{64, 64, 32})
		ref := newVolume(t, [3]int{64, 64, 64})

		f := v.CheckDimensions(seg, ref)
		if len(f.Errors) != 1 {
			t.Fatalf("Expected exactly 1 error, got %d: %v", len(f.Errors), f.Errors)
		}
		if !strings.Contains(f.Errors[0], "Dimension mismatch") {
			t.Errorf("Expected a dimension mismatch error, got %q", f.Errors[0])
		}
	})

	t.Run("AffineWithinTolerance", func(t *testing.T) {
		seg := newVolume(t, [3]int{8, 8, 8})
		ref := newVolume(t, [3]int{8, 8, 8})
		ref.Affine.Set(0, 3, 0.0005)

		f := v.CheckDimensions(seg, ref)
		if len(f.Errors) != 0 {
			t.Errorf("Expected no error for a 5e-4 affine delta, got %v", f.Errors)
		}
	})

	t.Run("AffineBeyondTolerance", func(t *testing.T) {
		seg := newVolume(t, [3]int{8, 8, 8})
		ref := newVolume(t, [3]int{8, 8, 8})
		ref.Affine.Set(1, 1, 1.002)

		f := v.CheckDimensions(seg, ref)
		if len(f.Errors) != 1 || !strings.Contains(f.Errors[0], "Affine matrix mismatch") {
			t.Errorf("Expected an affine mismatch error, got %v", f.Errors)
		}
	})
}

func TestCheckLabels(t *testing.T) {
	v := NewValidator(DefaultConfig())
	cat := newCatalog(t,
		catalog.Entry{ID: 5, Name: "Liver"},
		catalog.Entry{ID: 7, Name: "Spleen"},
	)

	t.Run("UnknownLabelAggregation", func(t *testing.T) {
		seg := newVolume(t, [3]int{8, 8, 8})
		seg.Set(0, 0, 0, 5)
		seg.Set(1, 0, 0, 7)
		seg.Set(2, 0, 0, 9999)

		f := v.CheckLabels(seg, cat)
		if len(f.Warnings) != 1 {
			t.Fatalf("Expected exactly 1 warning, got %d: %v", len(f.Warnings), f.Warnings)
		}
		if !strings.Contains(f.Warnings[0], "Found 1 unknown label(s)") ||
			!strings.Contains(f.Warnings[0], "9999") {
			t.Errorf("Expected the warning to cite label 9999 once, got %q", f.Warnings[0])
		}
		if len(f.Errors) != 0 {
			t.Errorf("Unknown labels must not be errors, got %v", f.Errors)
		}
	})

	t.Run("NegativeLabelsAreErrors", func(t *testing.T) {
		seg := newVolume(t, [3]int{8, 8, 8})
		seg.Set(0, 0, 0, -2)
		seg.Set(1, 0, 0, 5)

		f := v.CheckLabels(seg, cat)
		if len(f.Errors) != 1 || !strings.Contains(f.Errors[0], "-2") {
			t.Errorf("Expected an error naming label -2, got %v", f.Errors)
		}
	})

	t.Run("AllKnown", func(t *testing.T) {
		seg := newVolume(t, [3]int{8, 8, 8})
		seg.Set(0, 0, 0, 5)

		if f := v.CheckLabels(seg, cat); !f.empty() {
			t.Errorf("Expected no findings for known labels, got %+v", f)
		}
	})
}

func TestCheckVoxelCountsRatioBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSegmentationRatio = 0.5
	cfg.MinSegmentationRatio = 0.0
	cfg.MinVoxelsPerLabel = 1
	v := NewValidator(cfg)
	cat := newCatalog(t, catalog.Entry{ID: 1, Name: "Liver"})

	// 10x10x10 volume: exactly half the voxels labeled sits on the
	// threshold and must not warn; one voxel more must.
	seg := newVolume(t, [3]int{10, 10, 10})
	fillBlock(seg, 1, 0, 10, 0, 10, 0, 5) // 500 of 1000 voxels

	f := v.CheckVoxelCounts(seg, cat)
	if len(f.Warnings) != 0 {
		t.Errorf("Ratio exactly at the maximum must not warn, got %v", f.Warnings)
	}

	seg.Set(0, 0, 5, 1) // 501st voxel
	f = v.CheckVoxelCounts(seg, cat)
	if len(f.Warnings) != 1 || !strings.Contains(f.Warnings[0], "over-segmentation") {
		t.Errorf("Expected an over-segmentation warning, got %v", f.Warnings)
	}
}

func TestCheckVoxelCountsSmallLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinVoxelsPerLabel = 10
	cfg.MinSegmentationRatio = 0.0
	v := NewValidator(cfg)
	cat := newCatalog(t, catalog.Entry{ID: 1, Name: "Liver"})

	seg := newVolume(t, [3]int{10, 10, 10})
	fillBlock(seg, 1, 0, 3, 0, 1, 0, 1) // Liver: 3 voxels, under threshold
	fillBlock(seg, 2, 0, 2, 2, 3, 0, 1) // unknown label 2: 2 voxels

	f := v.CheckVoxelCounts(seg, cat)
	if len(f.Warnings) != 1 {
		t.Fatalf("Expected one aggregated warning, got %v", f.Warnings)
	}
	w := f.Warnings[0]
	if !strings.Contains(w, "Found 2 label(s) with < 10 voxels") {
		t.Errorf("Expected warning about 2 small labels, got %q", w)
	}
	if !strings.Contains(w, "Liver (ID: 1): 3 voxels") {
		t.Errorf("Expected the catalog name for label 1, got %q", w)
	}
	if !strings.Contains(w, "Label 2 (ID: 2): 2 voxels") {
		t.Errorf("Expected the fallback name for unknown label 2, got %q", w)
	}
}

func TestCheckVoxelCountsUnderSegmentation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinVoxelsPerLabel = 1
	v := NewValidator(cfg)
	cat := newCatalog(t, catalog.Entry{ID: 1, Name: "Liver"})

	// One voxel in 100x10x10 is below the default 0.1% floor.
	seg := newVolume(t, [3]int{100, 10, 10})
	seg.Set(0, 5, 5, 1)

	f := v.CheckVoxelCounts(seg, cat)
	if len(f.Warnings) != 1 || !strings.Contains(f.Warnings[0], "under-segmentation") {
		t.Errorf("Expected an under-segmentation warning, got %v", f.Warnings)
	}
}

func TestCheckSpatialConsistency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinVoxelsPerComponent = 10
	v := NewValidator(cfg)

	t.Run("FragmentsCounted", func(t *testing.T) {
		seg := newVolume(t, [3]int{20, 20, 20})
		fillBlock(seg, 1, 0, 5, 0, 5, 0, 5) // 125 voxels, fine
		seg.Set(15, 15, 15, 1)              // isolated fragment
		seg.Set(15, 15, 17, 2)              // another label's only component, still small

		f := v.CheckSpatialConsistency(seg)
		if len(f.Warnings) != 1 {
			t.Fatalf("Expected one aggregated warning, got %v", f.Warnings)
		}
		if !strings.Contains(f.Warnings[0], "Found 2 small isolated component(s)") {
			t.Errorf("Expected 2 small components reported, got %q", f.Warnings[0])
		}
	})

	t.Run("NoFragments", func(t *testing.T) {
		seg := newVolume(t, [3]int{20, 20, 20})
		fillBlock(seg, 1, 0, 5, 0, 5, 0, 5)

		if f := v.CheckSpatialConsistency(seg); !f.empty() {
			t.Errorf("Expected no findings, got %+v", f)
		}
	})
}

func TestCheckStatistics(t *testing.T) {
	v := NewValidator(DefaultConfig())

	t.Run("EmptySegmentation", func(t *testing.T) {
		f := v.CheckStatistics(newVolume(t, [3]int{8, 8, 8}))
		if len(f.Errors) != 1 || !strings.Contains(f.Errors[0], "empty") {
			t.Errorf("Expected an empty-segmentation error, got %v", f.Errors)
		}
	})

	t.Run("DominantLabel", func(t *testing.T) {
		seg := newVolume(t, [3]int{10, 10, 10})
		fillBlock(seg, 3, 0, 10, 0, 10, 0, 5) // 500 voxels
		fillBlock(seg, 4, 0, 10, 0, 1, 5, 6)  // 10 voxels, ~2% share

		f := v.CheckStatistics(seg)
		if len(f.Warnings) != 1 {
			t.Fatalf("Expected one dominance warning, got %v", f.Warnings)
		}
		if !strings.Contains(f.Warnings[0], "(ID: 3)") || !strings.Contains(f.Warnings[0], "dominates") {
			t.Errorf("Expected label 3 to be reported as dominating, got %q", f.Warnings[0])
		}
	})

	t.Run("BalancedLabels", func(t *testing.T) {
		seg := newVolume(t, [3]int{10, 10, 10})
		fillBlock(seg, 1, 0, 10, 0, 10, 0, 2)
		fillBlock(seg, 2, 0, 10, 0, 10, 2, 4)

		if f := v.CheckStatistics(seg); !f.empty() {
			t.Errorf("Expected no findings for balanced labels, got %+v", f)
		}
	})
}
