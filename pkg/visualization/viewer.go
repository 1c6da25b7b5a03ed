// Package visualization renders QC snapshots of pipeline volumes.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"petpipe/internal/models"
)

// Axes are the slicing axes used for snapshots.
var Axes = []string{"x", "y", "z"}

// Viewer extracts grayscale slices from a volume. Intensities are scaled so
// the volume maximum maps to white; negative values render black.
type Viewer struct {
	vol *models.Volume

	// scale maps voxel values into [0, 1]
	scale float64
}

// NewViewer creates a viewer for vol
func NewViewer(vol *models.Volume) *Viewer {
	scale := 0.0
	if len(vol.Data) > 0 {
		if peak := floats.Max(vol.Data); peak > 0 && !math.IsInf(peak, 0) {
			scale = 1 / peak
		}
	}
	return &Viewer{vol: vol, scale: scale}
}

func (v *Viewer) gray(idx int) color.Gray16 {
	value := uint16(math.Max(0, math.Min(65535, v.vol.Data[idx]*v.scale*65535)))
	return color.Gray16{Y: value}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	width, height, depth := v.vol.Width(), v.vol.Height(), v.vol.Depth()

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		img = image.NewGray16(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				img.SetGray16(z, y, v.gray(v.vol.Index(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		img = image.NewGray16(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, z, v.gray(v.vol.Index(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		img = image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, v.gray(v.vol.Index(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSnapshots writes the middle slice along each axis to name(axis) and
// returns the written paths.
func (v *Viewer) SaveSnapshots(name func(axis string) string) ([]string, error) {
	mid := map[string]int{
		"x": v.vol.Width() / 2,
		"y": v.vol.Height() / 2,
		"z": v.vol.Depth() / 2,
	}

	var written []string
	for _, axis := range Axes {
		img, err := v.ExtractSlice(axis, mid[axis])
		if err != nil {
			return written, err
		}
		filename := name(axis)
		if err := v.SaveSlice(img, filename); err != nil {
			return written, fmt.Errorf("failed to save %s snapshot: %w", axis, err)
		}
		written = append(written, filename)
	}
	return written, nil
}
