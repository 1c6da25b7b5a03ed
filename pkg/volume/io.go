// Package volume loads and stores pipeline volumes and implements the
// elementwise arithmetic the pipeline performs in-process: label selection,
// thresholding, binarization, union, subtraction, multiplication, clipping
// and masked means.
package volume

import (
	"fmt"

	"petpipe/internal/models"
	"petpipe/pkg/nifti"
)

// Load reads a 3D NIfTI volume and tags it with role. A 4D file is accepted
// only when its fourth dimension is 1.
func Load(path string, role models.Role) (*models.Volume, error) {
	img, err := nifti.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", role, err)
	}

	dims := img.Header.Dims()
	if len(dims) < 3 {
		return nil, fmt.Errorf("failed to load %s: %s has %d dimensions", role, path, len(dims))
	}
	for _, d := range dims[3:] {
		if d != 1 {
			return nil, fmt.Errorf("failed to load %s: %s is %dD, expected a single volume", role, path, len(dims))
		}
	}

	v := &models.Volume{
		Role:   role,
		Path:   path,
		Data:   img.Data,
		Header: img.Header,
	}
	v.Dims = [3]int{dims[0], dims[1], dims[2]}
	v.Affine = img.Header.Affine()
	v.VoxelSize.X = float64(img.Header.Pixdim[1])
	v.VoxelSize.Y = float64(img.Header.Pixdim[2])
	v.VoxelSize.Z = float64(img.Header.Pixdim[3])
	return v, nil
}

// Save writes v to path and records the path on v.
func Save(path string, v *models.Volume) error {
	h := v.Header
	h.SetDims(v.Dims[0], v.Dims[1], v.Dims[2])
	if err := nifti.Write(path, &nifti.Image{Header: h, Data: v.Data}); err != nil {
		return fmt.Errorf("failed to save %s: %w", v.Role, err)
	}
	v.Path = path
	return nil
}

// SaveStack writes the volumes as one 4D image, one volume per channel.
// All volumes must share a grid.
func SaveStack(path string, vols ...*models.Volume) error {
	if len(vols) == 0 {
		return fmt.Errorf("no volumes to stack")
	}
	ref := vols[0]
	n := ref.Voxels()
	data := make([]float64, 0, n*len(vols))
	for _, v := range vols {
		if err := SameGrid("stack", ref, v); err != nil {
			return err
		}
		data = append(data, v.Data...)
	}

	h := ref.Header
	h.SetDims(ref.Dims[0], ref.Dims[1], ref.Dims[2], len(vols))
	if err := nifti.Write(path, &nifti.Image{Header: h, Data: data}); err != nil {
		return fmt.Errorf("failed to save stacked volume: %w", err)
	}
	return nil
}

// New creates a zero-filled volume on an axis-aligned grid. It is mostly
// useful for synthetic inputs.
func New(role models.Role, dims [3]int, voxel [3]float64) *models.Volume {
	h := nifti.NewHeader(dims[:], voxel)
	v := &models.Volume{
		Role:   role,
		Data:   make([]float64, dims[0]*dims[1]*dims[2]),
		Header: h,
	}
	v.Dims = dims
	v.Affine = h.Affine()
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = voxel[0], voxel[1], voxel[2]
	return v
}
