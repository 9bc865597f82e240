package validation

import (
	"segqc/pkg/components"
	"segqc/pkg/volume"
)

// edgeThickness is the depth in voxels of the boundary slab examined by the
// artifact pass at each of the six volume faces.
const edgeThickness = 2

// edgeRatioLimit is the labeled fraction at or above which a boundary slab
// is assumed to be genuine anatomy reaching the border and left untouched.
const edgeRatioLimit = 0.1

// Cleaner removes noise from label volumes: small disconnected components
// and thin layers of labeled voxels at the volume boundary. Every operation
// works on a copy; the caller's volume is never mutated.
type Cleaner struct {
	cfg Config
}

// NewCleaner creates a cleaner with the given thresholds.
func NewCleaner(cfg Config) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// RemoveSmallComponents reverts to background every connected component with
// fewer than minVoxels member voxels, for each present label independently
// so that components never merge across differing label IDs. A minVoxels of
// 0 or less falls back to the configured MinVoxelsPerComponent. Returns the
// cleaned copy and the number of components removed across all labels.
func (c *Cleaner) RemoveSmallComponents(seg *volume.Volume, minVoxels int) (*volume.Volume, int) {
	if minVoxels <= 0 {
		minVoxels = c.cfg.MinVoxelsPerComponent
	}

	cleaned := seg.Clone()
	removed := 0

	for _, id := range seg.Labels() {
		ids, count := components.Label(cleaned.Mask(id), cleaned.Dims)
		sizes := components.Sizes(ids, count)
		for comp := 1; comp <= count; comp++ {
			if sizes[comp-1] >= minVoxels {
				continue
			}
			for i, cid := range ids {
				if cid == int32(comp) {
					cleaned.Data[i] = 0
				}
			}
			removed++
		}
	}
	return cleaned, removed
}

// CleanArtifacts examines a slab of edgeThickness voxels at the low and high
// face of each axis. A slab whose labeled fraction is below edgeRatioLimit
// is treated as an edge artifact and its labeled voxels are zeroed; denser
// slabs are preserved as anatomy reaching the boundary. Slabs are evaluated
// in order against the accumulating state, so overlapping slabs on tiny
// volumes never double-count a voxel. Returns the cleaned copy and the
// number of voxels removed.
func (c *Cleaner) CleanArtifacts(seg *volume.Volume) (*volume.Volume, int) {
	cleaned := seg.Clone()
	removed := 0

	for axis := 0; axis < 3; axis++ {
		thickness := edgeThickness
		if thickness > cleaned.Dims[axis] {
			thickness = cleaned.Dims[axis]
		}
		removed += cleanSlab(cleaned, axis, 0, thickness)
		removed += cleanSlab(cleaned, axis, cleaned.Dims[axis]-thickness, cleaned.Dims[axis])
	}
	return cleaned, removed
}

// cleanSlab evaluates one boundary slab [lo, hi) along the given axis and
// zeroes its labeled voxels when they cover less than edgeRatioLimit of the
// slab. Returns the number of voxels zeroed.
func cleanSlab(vol *volume.Volume, axis, lo, hi int) int {
	nx, ny, nz := vol.Dims[0], vol.Dims[1], vol.Dims[2]

	slabSize := 0
	labeled := 0
	var indices []int
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				coord := [3]int{x, y, z}[axis]
				if coord < lo || coord >= hi {
					continue
				}
				slabSize++
				idx := vol.Index(x, y, z)
				if vol.Data[idx] != 0 {
					labeled++
					indices = append(indices, idx)
				}
			}
		}
	}

	if labeled == 0 || slabSize == 0 {
		return 0
	}
	if float64(labeled)/float64(slabSize) >= edgeRatioLimit {
		return 0
	}
	for _, idx := range indices {
		vol.Data[idx] = 0
	}
	return labeled
}
