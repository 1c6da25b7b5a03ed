package volume

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petpipe/internal/models"
	"petpipe/pkg/nifti"
)

func filled(role models.Role, values ...float64) *models.Volume {
	v := New(role, [3]int{len(values), 1, 1}, [3]float64{1, 1, 1})
	copy(v.Data, values)
	return v
}

func TestSelectLabels(t *testing.T) {
	atlas := filled(models.RoleAtlas, 0, 8, 16, 47, 16.0001, 3)
	mask := SelectLabels(atlas, 8, 47)
	assert.Equal(t, []float64{0, 1, 0, 1, 0, 0}, mask.Data)
	assert.Equal(t, models.RoleMask, mask.Role)

	bs := SelectLabels(atlas, 16)
	assert.Equal(t, []float64{0, 0, 1, 0, 1, 0}, bs.Data)
}

func TestThresholdUnionSubtractClip(t *testing.T) {
	wm := filled(models.RoleWMProb, 0.2, 0.5, 0.9, 0, 0)
	a := Threshold(wm, 0.5)
	assert.Equal(t, []float64{0, 1, 1, 0, 0}, a.Data)

	b := filled(models.RoleMask, 0, 1, 0, 1, 0)
	u, err := Union(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1, 0}, u.Data)

	excl := filled(models.RoleMask, 1, 1, 0, 0, 0)
	d, err := Subtract(u, excl)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1, 1, 0}, d.Data)
	assert.Equal(t, []float64{0, 0, 1, 1, 0}, ClipZero(d).Data)
}

func TestMultiplyExact(t *testing.T) {
	a := filled(models.RoleGMProb, 0.5, 0.25, 1, 0)
	b := filled(models.RoleSUVR, 3, 0.1, 7.5, 2)
	p, err := Multiply(a, b, models.RolePVC)
	require.NoError(t, err)
	for i := range a.Data {
		assert.Equal(t, a.Data[i]*b.Data[i], p.Data[i])
	}
	assert.Equal(t, models.RolePVC, p.Role)
}

func TestGridMismatch(t *testing.T) {
	a := New(models.RolePET, [3]int{2, 2, 2}, [3]float64{1, 1, 1})
	b := New(models.RoleMask, [3]int{2, 2, 1}, [3]float64{1, 1, 1})
	c := New(models.RoleMask, [3]int{2, 2, 2}, [3]float64{2, 2, 2})

	_, err := Multiply(a, b, models.RolePVC)
	assert.True(t, errors.Is(err, models.ErrGridMismatch))

	_, _, err = MaskedMean(a, c, "brainstem")
	var gm *models.GridMismatchError
	require.ErrorAs(t, err, &gm)
	assert.Equal(t, "mean", gm.Op)
}

func TestMaskedMean(t *testing.T) {
	pet := filled(models.RolePET, 1, 2, 2, 1)
	mask := filled(models.RoleMask, 0, 1, 1, 0)
	mean, n, err := MaskedMean(pet, mask, "brainstem")
	require.NoError(t, err)
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 2, n)

	empty := filled(models.RoleMask, 0, 0, 0, 0)
	_, _, err = MaskedMean(pet, empty, "brainstem")
	assert.True(t, errors.Is(err, models.ErrEmptyMask))
}

func TestZeroWhere(t *testing.T) {
	gm := filled(models.RoleGMProb, 0.5, 0.5, 0.5)
	excl := filled(models.RoleMask, 0, 1, 0)
	out, err := ZeroWhere(gm, excl)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0.5}, out.Data)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, gm.Data, "input must not be modified")
}

func TestSaveLoadAndStack(t *testing.T) {
	dir := t.TempDir()
	gm := New(models.RoleGMProb, [3]int{2, 2, 2}, [3]float64{1, 1, 1})
	wm := New(models.RoleWMProb, [3]int{2, 2, 2}, [3]float64{1, 1, 1})
	for i := range gm.Data {
		gm.Data[i] = 0.25
		wm.Data[i] = 0.75
	}

	path := filepath.Join(dir, "gm.nii.gz")
	require.NoError(t, Save(path, gm))
	assert.Equal(t, path, gm.Path)

	back, err := Load(path, models.RoleGMProb)
	require.NoError(t, err)
	assert.True(t, back.Grid.Equal(gm.Grid))
	assert.Equal(t, gm.Data, back.Data)

	stack := filepath.Join(dir, "tissue.nii.gz")
	require.NoError(t, SaveStack(stack, gm, wm))
	img, err := nifti.Read(stack)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2, 2}, img.Header.Dims())
	assert.Equal(t, 0.25, img.Data[0])
	assert.Equal(t, 0.75, img.Data[8])

	_, err = Load(stack, models.RoleMask)
	assert.Error(t, err, "4D stack with two channels is not a single volume")
}
