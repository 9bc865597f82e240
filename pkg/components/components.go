// Package components implements connected-component labeling over boolean
// 3D masks using 6-connectivity (face adjacency only). It is the spatial
// primitive behind the segmentation consistency check and the
// small-component cleanup pass.
package components

// Label assigns a component ID to every true voxel of the mask. The mask is
// a flat slice in x-fastest order with the given dimensions. Two voxels
// belong to the same component iff they are connected through a path of
// face-adjacent true voxels; diagonal neighbors are not adjacent.
//
// The returned slice has the same length as the mask: 0 for voxels outside
// the mask, 1..count for member voxels. Labeling is a pure function of the
// input and the numbering is deterministic (raster scan order seeds each
// flood fill), though callers should rely only on membership and counts.
func Label(mask []bool, dims [3]int) ([]int32, int) {
	nx, ny, nz := dims[0], dims[1], dims[2]
	ids := make([]int32, len(mask))
	count := 0

	// Reused BFS queue of flat voxel indices.
	queue := make([]int, 0, 64)

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				start := z*nx*ny + y*nx + x
				if !mask[start] || ids[start] != 0 {
					continue
				}
				count++
				id := int32(count)
				ids[start] = id
				queue = append(queue[:0], start)

				for len(queue) > 0 {
					cur := queue[len(queue)-1]
					queue = queue[:len(queue)-1]

					cz := cur / (nx * ny)
					rem := cur % (nx * ny)
					cy := rem / nx
					cx := rem % nx

					// Face neighbors along each axis.
					if cx > 0 {
						visit(mask, ids, cur-1, id, &queue)
					}
					if cx < nx-1 {
						visit(mask, ids, cur+1, id, &queue)
					}
					if cy > 0 {
						visit(mask, ids, cur-nx, id, &queue)
					}
					if cy < ny-1 {
						visit(mask, ids, cur+nx, id, &queue)
					}
					if cz > 0 {
						visit(mask, ids, cur-nx*ny, id, &queue)
					}
					if cz < nz-1 {
						visit(mask, ids, cur+nx*ny, id, &queue)
					}
				}
			}
		}
	}
	return ids, count
}

func visit(mask []bool, ids []int32, idx int, id int32, queue *[]int) {
	if mask[idx] && ids[idx] == 0 {
		ids[idx] = id
		*queue = append(*queue, idx)
	}
}

// Sizes returns the voxel count of each component: index i-1 holds the size
// of component i as numbered by Label.
func Sizes(ids []int32, count int) []int {
	sizes := make([]int, count)
	for _, id := range ids {
		if id > 0 {
			sizes[id-1]++
		}
	}
	return sizes
}
