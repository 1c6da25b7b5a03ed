package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"petpipe/internal/models"
	"petpipe/pkg/volume"
)

func testVolume(width, height, depth int) *models.Volume {
	return volume.New(models.RoleSUVR, [3]int{width, height, depth}, [3]float64{2, 2, 2})
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	vol := testVolume(width, height, depth)

	// Fill with test pattern: each slice along Z has a unique value, the
	// last one reaching the maximum of 2.0
	for z := 0; z < depth; z++ {
		value := 2 * float64(z) / float64(depth-1)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Data[vol.Index(x, y, z)] = value
			}
		}
	}

	viewer := NewViewer(vol)

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		expectedValue := uint16(float64(z) / float64(depth-1) * 65535)
		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		centerValue := gray16Img.Gray16At(width/2, height/2).Y
		if math.Abs(float64(centerValue)-float64(expectedValue)) > 1.0 {
			t.Errorf("Expected Z slice value ~%d at center, got %d", expectedValue, centerValue)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestNegativeAndEmpty verifies negative voxels render black and an all-zero
// volume does not divide by zero
func TestNegativeAndEmpty(t *testing.T) {
	vol := testVolume(2, 2, 2)
	vol.Data[0] = -3
	vol.Data[1] = 1

	img, err := NewViewer(vol).ExtractSlice("z", 0)
	if err != nil {
		t.Fatal(err)
	}
	g := img.(*image.Gray16)
	if g.Gray16At(0, 0).Y != 0 {
		t.Errorf("Expected black for negative voxel, got %d", g.Gray16At(0, 0).Y)
	}
	if g.Gray16At(1, 0).Y != 65535 {
		t.Errorf("Expected white for maximum voxel, got %d", g.Gray16At(1, 0).Y)
	}

	zero := testVolume(2, 2, 2)
	img, err = NewViewer(zero).ExtractSlice("x", 1)
	if err != nil {
		t.Fatal(err)
	}
	if img.(*image.Gray16).Gray16At(0, 0).Y != 0 {
		t.Error("Expected black for empty volume")
	}
}

// TestSaveSnapshots verifies one readable JPEG is written per axis
func TestSaveSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "qc")
	vol := testVolume(6, 6, 4)
	for i := range vol.Data {
		vol.Data[i] = float64(i % 7)
	}

	written, err := NewViewer(vol).SaveSnapshots(func(axis string) string {
		return filepath.Join(dir, fmt.Sprintf("snap_axis-%s.jpg", axis))
	})
	if err != nil {
		t.Fatalf("SaveSnapshots failed: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(written))
	}

	for _, path := range written {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("Failed to open %s: %v", path, err)
		}
		if _, err := jpeg.Decode(f); err != nil {
			t.Errorf("Snapshot %s is not a valid JPEG: %v", path, err)
		}
		f.Close()
	}
}
