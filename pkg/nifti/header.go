// Package nifti reads and writes single-file NIfTI-1 images (.nii, .nii.gz).
// Only what the pipeline needs is supported: 3D and 4D scalar images in the
// common integer and floating point datatypes, with the header geometry
// carried through unchanged from input to output.
package nifti

import (
	"fmt"
	"math"
)

// HeaderSize is the size of a NIfTI-1 header on disk.
const HeaderSize = 348

// voxOffset is where voxel data starts in files written by this package
// (header plus an empty 4-byte extension block).
const voxOffset = 352

// NIfTI-1 datatype codes.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

// Header is the on-disk NIfTI-1 header. Field order and sizes follow the
// format definition, so binary.Read and binary.Write map it byte for byte.
type Header struct {
	SizeofHdr     int32
	DataTypeStr   [10]byte
	DbName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NewHeader returns a minimal float32 header for an image of the given
// dimensions with an axis-aligned sform built from the voxel sizes.
func NewHeader(dims []int, voxel [3]float64) Header {
	var h Header
	h.SizeofHdr = HeaderSize
	h.Regular = 'r'
	h.SetDims(dims...)
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		h.Pixdim[i+1] = float32(voxel[i])
	}
	h.VoxOffset = voxOffset
	h.SclSlope = 1
	h.XyztUnits = 2 // mm
	h.SformCode = 1
	h.SrowX = [4]float32{float32(voxel[0]), 0, 0, 0}
	h.SrowY = [4]float32{0, float32(voxel[1]), 0, 0}
	h.SrowZ = [4]float32{0, 0, float32(voxel[2]), 0}
	copy(h.Magic[:], "n+1\x00")
	return h
}

// SetDims sets dim[0] and dim[1..n].
func (h *Header) SetDims(dims ...int) {
	h.Dim = [8]int16{}
	h.Dim[0] = int16(len(dims))
	for i, d := range dims {
		h.Dim[i+1] = int16(d)
	}
	for i := len(dims) + 1; i < 8; i++ {
		h.Dim[i] = 1
	}
}

// Dims returns the image dimensions, dim[1..dim[0]].
func (h *Header) Dims() []int {
	n := int(h.Dim[0])
	if n < 1 || n > 7 {
		return nil
	}
	dims := make([]int, n)
	for i := 0; i < n; i++ {
		dims[i] = int(h.Dim[i+1])
	}
	return dims
}

// Voxels is the total number of voxels over all dimensions.
func (h *Header) Voxels() int {
	dims := h.Dims()
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// voxelsWithin returns the voxel count, failing when a dimension is not
// positive or the count exceeds limit. The product is bounded at every step
// so crafted dims cannot overflow.
func (h *Header) voxelsWithin(limit int) (int, error) {
	dims := h.Dims()
	if len(dims) == 0 {
		return 0, fmt.Errorf("invalid dimensions %v", h.Dim)
	}
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dimensions %v", h.Dim)
		}
		if n > limit/d {
			return 0, fmt.Errorf("dimensions %v need more voxels than the file holds (%d)", h.Dim, limit)
		}
		n *= d
	}
	return n, nil
}

// Affine returns the voxel-to-world transform (first three rows). The sform
// takes precedence, then the qform, then a scaling by pixdim.
func (h *Header) Affine() [3][4]float64 {
	switch {
	case h.SformCode > 0:
		var a [3][4]float64
		for c := 0; c < 4; c++ {
			a[0][c] = float64(h.SrowX[c])
			a[1][c] = float64(h.SrowY[c])
			a[2][c] = float64(h.SrowZ[c])
		}
		return a
	case h.QformCode > 0:
		return h.qformAffine()
	default:
		return [3][4]float64{
			{float64(h.Pixdim[1]), 0, 0, 0},
			{0, float64(h.Pixdim[2]), 0, 0},
			{0, 0, float64(h.Pixdim[3]), 0},
		}
	}
}

func (h *Header) qformAffine() [3][4]float64 {
	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// 180 degree rotation; renormalize
		n := math.Sqrt(b*b + c*c + d*d)
		b, c, d = b/n, c/n, d/n
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	qfac := 1.0
	if h.Pixdim[0] < 0 {
		qfac = -1
	}
	dx, dy, dz := float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3])*qfac

	r := [3][3]float64{
		{a*a + b*b - c*c - d*d, 2*b*c - 2*a*d, 2*b*d + 2*a*c},
		{2*b*c + 2*a*d, a*a + c*c - b*b - d*d, 2*c*d - 2*a*b},
		{2*b*d - 2*a*c, 2*c*d + 2*a*b, a*a + d*d - c*c - b*b},
	}
	return [3][4]float64{
		{r[0][0] * dx, r[0][1] * dy, r[0][2] * dz, float64(h.QoffsetX)},
		{r[1][0] * dx, r[1][1] * dy, r[1][2] * dz, float64(h.QoffsetY)},
		{r[2][0] * dx, r[2][1] * dy, r[2][2] * dz, float64(h.QoffsetZ)},
	}
}

// bytesPerVoxel returns the storage size for a datatype, or 0 if the
// datatype is not supported.
func bytesPerVoxel(datatype int16) int {
	switch datatype {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTFloat64:
		return 8
	}
	return 0
}
