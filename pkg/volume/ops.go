package volume

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"petpipe/internal/models"
)

// SameGrid returns a GridMismatchError when a and b are not on the same
// voxel grid.
func SameGrid(op string, a, b *models.Volume) error {
	if a.Grid.Equal(b.Grid) && len(a.Data) == len(b.Data) {
		return nil
	}
	return &models.GridMismatchError{Op: op, A: a.Role, B: b.Role, GA: a.Grid, GB: b.Grid}
}

// SelectLabels returns a binary mask of voxels whose label is one of codes.
// Labels are rounded to the nearest integer before comparison.
func SelectLabels(labels *models.Volume, codes ...int) *models.Volume {
	want := make(map[int]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	out := labels.Like(models.RoleMask)
	for i, x := range labels.Data {
		if want[int(math.Round(x))] {
			out.Data[i] = 1
		}
	}
	return out
}

// Threshold returns a binary mask of voxels with value >= thr.
func Threshold(v *models.Volume, thr float64) *models.Volume {
	out := v.Like(models.RoleMask)
	for i, x := range v.Data {
		if x >= thr {
			out.Data[i] = 1
		}
	}
	return out
}

// Binarize sets every nonzero voxel to one, in place.
func Binarize(v *models.Volume) *models.Volume {
	for i, x := range v.Data {
		if x != 0 {
			v.Data[i] = 1
		}
	}
	return v
}

// ClipZero replaces negative voxels with zero, in place.
func ClipZero(v *models.Volume) *models.Volume {
	for i, x := range v.Data {
		if x < 0 {
			v.Data[i] = 0
		}
	}
	return v
}

// Add returns the elementwise sum of the volumes.
func Add(first *models.Volume, rest ...*models.Volume) (*models.Volume, error) {
	out := first.Like(first.Role)
	copy(out.Data, first.Data)
	for _, v := range rest {
		if err := SameGrid("add", first, v); err != nil {
			return nil, err
		}
		floats.Add(out.Data, v.Data)
	}
	return out, nil
}

// Union returns the binary union of the masks.
func Union(first *models.Volume, rest ...*models.Volume) (*models.Volume, error) {
	sum, err := Add(first, rest...)
	if err != nil {
		return nil, err
	}
	sum.Role = models.RoleMask
	return Binarize(sum), nil
}

// Subtract returns a - b.
func Subtract(a, b *models.Volume) (*models.Volume, error) {
	if err := SameGrid("subtract", a, b); err != nil {
		return nil, err
	}
	out := a.Like(a.Role)
	floats.SubTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Multiply returns the elementwise product a * b, tagged with role.
func Multiply(a, b *models.Volume, role models.Role) (*models.Volume, error) {
	if err := SameGrid("multiply", a, b); err != nil {
		return nil, err
	}
	out := a.Like(role)
	floats.MulTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Divide returns v with every voxel divided by d.
func Divide(v *models.Volume, d float64, role models.Role) *models.Volume {
	out := v.Like(role)
	for i, x := range v.Data {
		out.Data[i] = x / d
	}
	return out
}

// ZeroWhere returns a copy of v with voxels zeroed wherever mask is nonzero.
func ZeroWhere(v, mask *models.Volume) (*models.Volume, error) {
	if err := SameGrid("exclude", v, mask); err != nil {
		return nil, err
	}
	out := v.Like(v.Role)
	for i, x := range v.Data {
		if mask.Data[i] == 0 {
			out.Data[i] = x
		}
	}
	return out, nil
}

// MaskedMean returns the mean of v over the nonzero voxels of mask and the
// number of voxels averaged. An empty mask yields an EmptyMaskError.
func MaskedMean(v, mask *models.Volume, region string) (float64, int, error) {
	if err := SameGrid("mean", v, mask); err != nil {
		return 0, 0, err
	}
	values := make([]float64, 0, mask.Nonzero())
	for i, m := range mask.Data {
		if m != 0 {
			values = append(values, v.Data[i])
		}
	}
	if len(values) == 0 {
		return 0, 0, &models.EmptyMaskError{Region: region}
	}
	return stat.Mean(values, nil), len(values), nil
}
