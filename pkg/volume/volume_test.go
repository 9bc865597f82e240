package volume

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewRejectsBadDimensions(t *testing.T) {
	if _, err := New([3]int{0, 4, 4}, nil); err == nil {
		t.Error("Expected error for zero dimension")
	}
	if _, err := New([3]int{4, -1, 4}, nil); err == nil {
		t.Error("Expected error for negative dimension")
	}
	if _, err := New([3]int{4, 4, 4}, mat.NewDense(3, 3, nil)); err == nil {
		t.Error("Expected error for non-4x4 affine")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	vol, err := New([3]int{4, 4, 4}, nil)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	vol.Set(1, 2, 3, 7)

	clone := vol.Clone()
	clone.Set(1, 2, 3, 9)
	clone.Affine.Set(0, 3, 5)

	if got := vol.At(1, 2, 3); got != 7 {
		t.Errorf("Clone mutation leaked into original data: got %d", got)
	}
	if got := vol.Affine.At(0, 3); got != 0 {
		t.Errorf("Clone mutation leaked into original affine: got %f", got)
	}
}

func TestLabelsSortedAscending(t *testing.T) {
	vol, _ := New([3]int{3, 3, 3}, nil)
	vol.Set(0, 0, 0, 9)
	vol.Set(1, 0, 0, 2)
	vol.Set(2, 0, 0, 5)
	vol.Set(0, 1, 0, 2)

	labels := vol.Labels()
	want := []int32{2, 5, 9}
	if len(labels) != len(want) {
		t.Fatalf("Expected %d labels, got %d", len(want), len(labels))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("Label %d: expected %d, got %d", i, want[i], labels[i])
		}
	}
}

func TestCountsAndMask(t *testing.T) {
	vol, _ := New([3]int{4, 4, 4}, nil)
	vol.Set(0, 0, 0, 3)
	vol.Set(1, 1, 1, 3)
	vol.Set(2, 2, 2, 8)

	if got := vol.CountNonzero(); got != 3 {
		t.Errorf("Expected 3 nonzero voxels, got %d", got)
	}

	counts := vol.LabelCounts()
	if counts[3] != 2 || counts[8] != 1 {
		t.Errorf("Unexpected label counts: %v", counts)
	}

	mask := vol.Mask(3)
	set := 0
	for _, m := range mask {
		if m {
			set++
		}
	}
	if set != 2 {
		t.Errorf("Expected mask to select 2 voxels, got %d", set)
	}
	if !mask[vol.Index(0, 0, 0)] || !mask[vol.Index(1, 1, 1)] {
		t.Error("Mask missed a voxel carrying the label")
	}
	if mask[vol.Index(2, 2, 2)] {
		t.Error("Mask selected a voxel of a different label")
	}
}
