package components

import "testing"

// maskFromVoxels builds a flat boolean mask with the given voxels set.
func maskFromVoxels(dims [3]int, voxels [][3]int) []bool {
	mask := make([]bool, dims[0]*dims[1]*dims[2])
	for _, v := range voxels {
		mask[v[2]*dims[0]*dims[1]+v[1]*dims[0]+v[0]] = true
	}
	return mask
}

func TestLabelEmptyMask(t *testing.T) {
	dims := [3]int{4, 4, 4}
	ids, count := Label(make([]bool, 64), dims)

	if count != 0 {
		t.Errorf("Expected 0 components in empty mask, got %d", count)
	}
	for i, id := range ids {
		if id != 0 {
			t.Fatalf("Voxel %d labeled %d in empty mask", i, id)
		}
	}
}

func TestLabelSingleComponent(t *testing.T) {
	dims := [3]int{5, 5, 5}

	// An L-shaped run of face-adjacent voxels spanning all three axes.
	voxels := [][3]int{
		{1, 1, 1}, {2, 1, 1}, {3, 1, 1},
		{3, 2, 1}, {3, 3, 1},
		{3, 3, 2}, {3, 3, 3},
	}
	mask := maskFromVoxels(dims, voxels)

	ids, count := Label(mask, dims)
	if count != 1 {
		t.Fatalf("Expected 1 component, got %d", count)
	}

	sizes := Sizes(ids, count)
	if sizes[0] != len(voxels) {
		t.Errorf("Expected component size %d, got %d", len(voxels), sizes[0])
	}
}

func TestLabelDiagonalsAreSeparate(t *testing.T) {
	dims := [3]int{4, 4, 4}

	tests := []struct {
		name   string
		voxels [][3]int
		want   int
	}{
		{
			name:   "EdgeDiagonalXY",
			voxels: [][3]int{{1, 1, 1}, {2, 2, 1}},
			want:   2,
		},
		{
			name:   "CornerDiagonalXYZ",
			voxels: [][3]int{{1, 1, 1}, {2, 2, 2}},
			want:   2,
		},
		{
			name:   "FaceNeighborZ",
			voxels: [][3]int{{1, 1, 1}, {1, 1, 2}},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, count := Label(maskFromVoxels(dims, tt.voxels), dims)
			if count != tt.want {
				t.Errorf("Expected %d component(s), got %d", tt.want, count)
			}
		})
	}
}

func TestLabelMultipleComponents(t *testing.T) {
	dims := [3]int{10, 10, 10}

	// Three well-separated clusters of sizes 1, 2 and 3.
	voxels := [][3]int{
		{0, 0, 0},
		{5, 5, 5}, {6, 5, 5},
		{0, 9, 9}, {1, 9, 9}, {2, 9, 9},
	}
	mask := maskFromVoxels(dims, voxels)

	ids, count := Label(mask, dims)
	if count != 3 {
		t.Fatalf("Expected 3 components, got %d", count)
	}

	// Component numbering order is unspecified; compare the size multiset.
	sizes := Sizes(ids, count)
	got := map[int]int{}
	for _, s := range sizes {
		got[s]++
	}
	want := map[int]int{1: 1, 2: 1, 3: 1}
	for size, n := range want {
		if got[size] != n {
			t.Errorf("Expected %d component(s) of size %d, got %d", n, size, got[size])
		}
	}

	// Voxels outside the mask must stay unlabeled.
	for i, id := range ids {
		if mask[i] && id == 0 {
			t.Errorf("Masked voxel %d left unlabeled", i)
		}
		if !mask[i] && id != 0 {
			t.Errorf("Unmasked voxel %d labeled %d", i, id)
		}
	}
}

func TestLabelDeterministic(t *testing.T) {
	dims := [3]int{8, 8, 8}
	voxels := [][3]int{
		{1, 1, 1}, {2, 1, 1}, {6, 6, 6}, {6, 6, 5}, {0, 7, 0},
	}
	mask := maskFromVoxels(dims, voxels)

	first, firstCount := Label(mask, dims)
	second, secondCount := Label(mask, dims)

	if firstCount != secondCount {
		t.Fatalf("Component counts differ across runs: %d vs %d", firstCount, secondCount)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Labeling differs at voxel %d: %d vs %d", i, first[i], second[i])
		}
	}
}
