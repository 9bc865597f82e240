// Package preview renders flat 2D slice previews of a label volume for
// quick visual QC of validation and cleanup output. Each voxel is painted
// with its catalog color; labels missing from the catalog get their
// deterministic fallback color so that previews stay stable across runs.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"segqc/pkg/catalog"
	"segqc/pkg/volume"
)

// Previewer extracts colored slice images from a label volume.
type Previewer struct {
	vol *volume.Volume
	cat *catalog.Catalog

	// colors caches the resolved color per label for one volume.
	colors map[int32]color.RGBA
}

// NewPreviewer creates a previewer for the given volume and catalog.
func NewPreviewer(vol *volume.Volume, cat *catalog.Catalog) *Previewer {
	return &Previewer{
		vol:    vol,
		cat:    cat,
		colors: make(map[int32]color.RGBA),
	}
}

func (p *Previewer) labelColor(id int32) color.RGBA {
	if c, ok := p.colors[id]; ok {
		return c
	}
	var rgb [3]uint8
	if c, ok := p.cat.Color(int(id)); ok {
		rgb = c
	} else if name, ok := p.cat.Name(int(id)); ok {
		rgb = catalog.FallbackColor(name)
	} else {
		rgb = catalog.FallbackColor(fmt.Sprintf("Label %d", id))
	}
	c := color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	p.colors[id] = c
	return c
}

// ExtractSlice extracts a colored 2D slice from the volume along the
// specified axis. Background voxels are black.
func (p *Previewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	nx, ny, nz := p.vol.Dims[0], p.vol.Dims[1], p.vol.Dims[2]
	var img *image.RGBA

	switch axis {
	case "x", "X":
		// Slice along the YZ plane
		if position >= nx {
			return nil, fmt.Errorf("position %d exceeds width %d", position, nx)
		}
		img = image.NewRGBA(image.Rect(0, 0, nz, ny))
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				p.paint(img, z, y, p.vol.At(position, y, z))
			}
		}

	case "y", "Y":
		// Slice along the XZ plane
		if position >= ny {
			return nil, fmt.Errorf("position %d exceeds height %d", position, ny)
		}
		img = image.NewRGBA(image.Rect(0, 0, nx, nz))
		for z := 0; z < nz; z++ {
			for x := 0; x < nx; x++ {
				p.paint(img, x, z, p.vol.At(x, position, z))
			}
		}

	case "z", "Z":
		// Slice along the XY plane
		if position >= nz {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, nz)
		}
		img = image.NewRGBA(image.Rect(0, 0, nx, ny))
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				p.paint(img, x, y, p.vol.At(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (p *Previewer) paint(img *image.RGBA, x, y int, label int32) {
	if label == 0 {
		img.SetRGBA(x, y, color.RGBA{A: 255})
		return
	}
	img.SetRGBA(x, y, p.labelColor(label))
}

// SaveSlice saves an extracted slice as a JPEG image
func (p *Previewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (p *Previewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = p.vol.Dims[0]
	case "y", "Y":
		maxPos = p.vol.Dims[1]
	case "z", "Z":
		maxPos = p.vol.Dims[2]
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := p.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := p.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
