package models

import (
	"math"

	"petpipe/pkg/nifti"
)

// Role identifies what a volume represents inside a pipeline run.
type Role string

const (
	RoleT1          Role = "T1w"
	RolePET         Role = "PET"
	RoleAtlas       Role = "atlas"
	RoleSubcortical Role = "subcortical"
	RoleGMProb      Role = "GM probability"
	RoleWMProb      Role = "WM probability"
	RoleMask        Role = "mask"
	RoleSUVR        Role = "SUVR"
	RolePVC         Role = "PVC"
)

// gridTolerance is the largest affine difference, in mm, still treated as the
// same voxel grid.
const gridTolerance = 1e-4

// Grid is the voxel lattice of a volume: its dimensions and the
// voxel-to-world affine (first three rows).
type Grid struct {
	Dims   [3]int
	Affine [3][4]float64
}

// Voxels returns the number of voxels on the grid.
func (g Grid) Voxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Equal reports whether two grids have the same dimensions and affine.
func (g Grid) Equal(o Grid) bool {
	if g.Dims != o.Dims {
		return false
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			if math.Abs(g.Affine[r][c]-o.Affine[r][c]) > gridTolerance {
				return false
			}
		}
	}
	return true
}

// Volume represents a 3D scalar image on a fixed voxel grid
type Volume struct {
	// Role is the semantic role of the volume (PET, atlas, ...)
	Role Role

	// Path is the file the volume was read from or last written to
	Path string

	// Grid holds the dimensions and voxel-to-world affine
	Grid

	// Data is the voxel data as a 1D array, x varying fastest
	Data []float64

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}

	// Header is the NIfTI header the volume was decoded from. Derived
	// volumes inherit it so that geometry survives a write.
	Header nifti.Header
}

// Width is the number of voxels along x.
func (v *Volume) Width() int { return v.Dims[0] }

// Height is the number of voxels along y.
func (v *Volume) Height() int { return v.Dims[1] }

// Depth is the number of voxels along z.
func (v *Volume) Depth() int { return v.Dims[2] }

// Index returns the flat offset of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return z*v.Dims[0]*v.Dims[1] + y*v.Dims[0] + x
}

// Like returns an empty volume sharing v's grid and header.
func (v *Volume) Like(role Role) *Volume {
	out := &Volume{
		Role:      role,
		Grid:      v.Grid,
		Data:      make([]float64, len(v.Data)),
		VoxelSize: v.VoxelSize,
		Header:    v.Header,
	}
	return out
}

// Nonzero counts voxels with a value different from zero.
func (v *Volume) Nonzero() int {
	n := 0
	for _, x := range v.Data {
		if x != 0 {
			n++
		}
	}
	return n
}
