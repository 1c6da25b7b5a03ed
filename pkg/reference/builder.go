// Package reference builds the binary reference-region masks used as SUVR
// denominators: brainstem, cerebellar gray matter and a composite of white
// matter, brainstem and cerebellum.
package reference

import (
	"fmt"

	"petpipe/internal/models"
	"petpipe/pkg/volume"
)

// Labels holds the label codes and threshold that define the regions.
type Labels struct {
	Brainstem          int
	CerebellarGM       []int
	SubcorticalExclude []int
	WMThreshold        float64
}

// Mask is the outcome for one region. Err is set when the mask could not
// be built or came out empty.
type Mask struct {
	Region models.Region
	Volume *models.Volume
	Err    error
}

// Builder derives reference masks from an atlas in T1 space, the
// subcortical labels and the WM probability map.
type Builder struct {
	labels Labels
}

// NewBuilder returns a Builder for the given label definition.
func NewBuilder(labels Labels) *Builder {
	return &Builder{labels: labels}
}

// Build returns one Mask per region in models.Regions order. Brainstem and
// cerebellarGM depend on the atlas alone; a subcortical or WM map on another
// grid fails only the composite.
func (b *Builder) Build(atlas, subcortical, wm *models.Volume) []Mask {
	brainstem := volume.SelectLabels(atlas, b.labels.Brainstem)
	cerebellum := volume.SelectLabels(atlas, b.labels.CerebellarGM...)
	composite, err := b.composite(subcortical, wm, brainstem, cerebellum)

	masks := []Mask{
		{Region: models.Brainstem, Volume: brainstem},
		{Region: models.CerebellarGM, Volume: cerebellum},
		{Region: models.Composite, Volume: composite, Err: err},
	}
	for i := range masks {
		m := &masks[i]
		if m.Err == nil && m.Volume.Nonzero() == 0 {
			m.Err = &models.EmptyMaskError{Region: m.Region.String()}
		}
		if m.Err != nil {
			m.Volume = nil
		}
	}
	return masks
}

// composite is binarize(wm >= thr + brainstem + cerebellum) minus the
// excluded subcortical labels, clipped at zero.
func (b *Builder) composite(subcortical, wm, brainstem, cerebellum *models.Volume) (*models.Volume, error) {
	union, err := volume.Union(volume.Threshold(wm, b.labels.WMThreshold), brainstem, cerebellum)
	if err != nil {
		return nil, fmt.Errorf("composite union: %w", err)
	}
	excluded := volume.SelectLabels(subcortical, b.labels.SubcorticalExclude...)
	diff, err := volume.Subtract(union, excluded)
	if err != nil {
		return nil, fmt.Errorf("composite exclusion: %w", err)
	}
	return volume.ClipZero(diff), nil
}
