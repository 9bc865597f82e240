// Package volume provides the in-memory representation of a labeled 3D
// medical image volume. Voxel data is stored as a flat slice in x-fastest
// order together with the 4x4 affine transform mapping voxel indices to
// physical (scanner) space.
package volume

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Volume is a 3D array of integer label IDs with its spatial metadata.
// A value of 0 marks background (unlabeled) voxels. Negative values are
// representable so that malformed segmentations can be inspected by the
// validation checks rather than rejected at construction.
type Volume struct {
	// Data holds one label ID per voxel, indexed z*nx*ny + y*nx + x.
	Data []int32

	// Dims are the voxel counts along x, y and z.
	Dims [3]int

	// Affine maps voxel indices to physical coordinates. Always 4x4.
	Affine *mat.Dense
}

// IdentityAffine returns a 4x4 identity transform, the affine used when a
// source file carries no spatial information.
func IdentityAffine() *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		a.Set(i, i, 1)
	}
	return a
}

// New creates a zero-filled volume with the given dimensions.
// The affine may be nil, in which case the identity transform is used.
func New(dims [3]int, affine *mat.Dense) (*Volume, error) {
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("volume dimension %d must be positive, got %d", i, d)
		}
	}
	if affine == nil {
		affine = IdentityAffine()
	} else if r, c := affine.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}
	return &Volume{
		Data:   make([]int32, dims[0]*dims[1]*dims[2]),
		Dims:   dims,
		Affine: affine,
	}, nil
}

// Clone returns a deep copy sharing no state with the receiver.
func (v *Volume) Clone() *Volume {
	data := make([]int32, len(v.Data))
	copy(data, v.Data)
	affine := mat.DenseCopyOf(v.Affine)
	return &Volume{Data: data, Dims: v.Dims, Affine: affine}
}

// Index converts voxel coordinates to the flat data index.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Dims[0]*v.Dims[1] + y*v.Dims[0] + x
}

// At returns the label at the given voxel coordinates.
func (v *Volume) At(x, y, z int) int32 {
	return v.Data[v.Index(x, y, z)]
}

// Set writes the label at the given voxel coordinates.
func (v *Volume) Set(x, y, z int, label int32) {
	v.Data[v.Index(x, y, z)] = label
}

// TotalVoxels returns the number of voxels in the volume.
func (v *Volume) TotalVoxels() int {
	return len(v.Data)
}

// CountNonzero returns the number of voxels carrying a nonzero label.
func (v *Volume) CountNonzero() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// Labels returns the distinct nonzero label values present in the volume,
// sorted ascending. Negative values, if any, sort first.
func (v *Volume) Labels() []int32 {
	seen := make(map[int32]struct{})
	for _, val := range v.Data {
		if val != 0 {
			seen[val] = struct{}{}
		}
	}
	labels := make([]int32, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// LabelCounts returns the voxel count for every distinct nonzero label.
func (v *Volume) LabelCounts() map[int32]int {
	counts := make(map[int32]int)
	for _, val := range v.Data {
		if val != 0 {
			counts[val]++
		}
	}
	return counts
}

// Mask returns a boolean mask selecting the voxels carrying the given label.
func (v *Volume) Mask(label int32) []bool {
	mask := make([]bool, len(v.Data))
	for i, val := range v.Data {
		if val == label {
			mask[i] = true
		}
	}
	return mask
}
