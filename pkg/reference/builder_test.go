package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petpipe/internal/models"
	"petpipe/pkg/volume"
)

var dims = [3]int{4, 4, 4}

func defaultLabels() Labels {
	return Labels{
		Brainstem:          16,
		CerebellarGM:       []int{8, 47},
		SubcorticalExclude: []int{16},
		WMThreshold:        0.5,
	}
}

func inputs() (atlas, subcortical, wm *models.Volume) {
	atlas = volume.New(models.RoleAtlas, dims, [3]float64{1, 1, 1})
	subcortical = volume.New(models.RoleSubcortical, dims, [3]float64{1, 1, 1})
	wm = volume.New(models.RoleWMProb, dims, [3]float64{1, 1, 1})

	atlas.Data[atlas.Index(0, 0, 0)] = 16
	atlas.Data[atlas.Index(1, 0, 0)] = 16
	atlas.Data[atlas.Index(2, 0, 0)] = 8
	atlas.Data[atlas.Index(3, 0, 0)] = 47
	atlas.Data[atlas.Index(0, 1, 0)] = 2

	wm.Data[wm.Index(0, 2, 0)] = 0.9
	wm.Data[wm.Index(1, 2, 0)] = 0.5
	wm.Data[wm.Index(2, 2, 0)] = 0.49

	// first brainstem voxel is also brainstem in the subcortical labels
	subcortical.Data[subcortical.Index(0, 0, 0)] = 16
	// so is one WM voxel
	subcortical.Data[subcortical.Index(0, 2, 0)] = 16
	return
}

func byRegion(masks []Mask) map[models.Region]Mask {
	out := make(map[models.Region]Mask)
	for _, m := range masks {
		out[m.Region] = m
	}
	return out
}

func TestBuildRegions(t *testing.T) {
	atlas, subcortical, wm := inputs()

	masks := NewBuilder(defaultLabels()).Build(atlas, subcortical, wm)
	require.Len(t, masks, 3)
	m := byRegion(masks)

	bs := m[models.Brainstem].Volume
	require.NotNil(t, bs)
	assert.Equal(t, 2, bs.Nonzero())

	cgm := m[models.CerebellarGM].Volume
	require.NotNil(t, cgm)
	assert.Equal(t, 2, cgm.Nonzero())
	assert.Equal(t, 1.0, cgm.Data[cgm.Index(2, 0, 0)])
	assert.Equal(t, 1.0, cgm.Data[cgm.Index(3, 0, 0)])

	comp := m[models.Composite].Volume
	require.NotNil(t, comp)
	// brainstem(1,0,0), cerebellum x2, WM (1,2,0); (0,0,0) and (0,2,0) excluded
	assert.Equal(t, 4, comp.Nonzero())
	assert.Equal(t, 0.0, comp.Data[comp.Index(0, 0, 0)])
	assert.Equal(t, 0.0, comp.Data[comp.Index(0, 2, 0)])
	assert.Equal(t, 1.0, comp.Data[comp.Index(1, 2, 0)])
	assert.Equal(t, 0.0, comp.Data[comp.Index(2, 2, 0)])
}

func TestCompositeExcludesSubcorticalBrainstem(t *testing.T) {
	atlas, subcortical, wm := inputs()
	// make every voxel a WM voxel and every other voxel excluded
	for i := range wm.Data {
		wm.Data[i] = 1
		if i%2 == 0 {
			subcortical.Data[i] = 16
		}
	}

	masks := NewBuilder(defaultLabels()).Build(atlas, subcortical, wm)
	comp := byRegion(masks)[models.Composite].Volume
	require.NotNil(t, comp)

	for i := range comp.Data {
		if subcortical.Data[i] == 16 {
			assert.Zero(t, comp.Data[i], "voxel %d", i)
		}
		assert.Contains(t, []float64{0, 1}, comp.Data[i])
	}
}

func TestEmptyRegion(t *testing.T) {
	atlas, subcortical, wm := inputs()
	for i, x := range atlas.Data {
		if x == 16 {
			atlas.Data[i] = 0
		}
	}

	masks := NewBuilder(defaultLabels()).Build(atlas, subcortical, wm)
	bs := byRegion(masks)[models.Brainstem]
	assert.Nil(t, bs.Volume)
	assert.ErrorIs(t, bs.Err, models.ErrEmptyMask)
	assert.NoError(t, byRegion(masks)[models.CerebellarGM].Err)
}

func TestBuildGridMismatchFailsCompositeOnly(t *testing.T) {
	atlas, subcortical, _ := inputs()
	wm := volume.New(models.RoleWMProb, [3]int{4, 4, 3}, [3]float64{1, 1, 1})

	m := byRegion(NewBuilder(defaultLabels()).Build(atlas, subcortical, wm))
	assert.NoError(t, m[models.Brainstem].Err)
	assert.NoError(t, m[models.CerebellarGM].Err)
	assert.ErrorIs(t, m[models.Composite].Err, models.ErrGridMismatch)
	assert.Nil(t, m[models.Composite].Volume)

	subcortical = volume.New(models.RoleSubcortical, [3]int{4, 4, 3}, [3]float64{1, 1, 1})
	_, _, wm = inputs()
	m = byRegion(NewBuilder(defaultLabels()).Build(atlas, subcortical, wm))
	assert.NoError(t, m[models.Brainstem].Err)
	assert.ErrorIs(t, m[models.Composite].Err, models.ErrGridMismatch)
}
