// Package pvc applies partial-volume correction to SUVR volumes. The
// GMprob method weights SUVR by gray-matter probability in process; MG
// (Muller-Gartner) delegates to the external PETPVC tool.
package pvc

import (
	"context"
	"fmt"

	"petpipe/internal/models"
	"petpipe/pkg/toolkit"
	"petpipe/pkg/volume"
)

// Params configures an Engine.
type Params struct {
	// PSF is the scanner point-spread FWHM in mm along x, y and z
	PSF [3]float64

	// Exclude are the subcortical codes zeroed in the GM probability map
	Exclude []int

	// Methods run for every SUVR volume, in order
	Methods []models.Method
}

// Tissue is the per-subject state shared by every correction.
type Tissue struct {
	// GMExcl is GM probability with excluded subcortical voxels zeroed
	GMExcl *models.Volume

	// MaskPath is the staged 4D GM/WM mask; empty when MG is not run
	MaskPath string

	// GMErr and MaskErr record why GMExcl or the mask could not be
	// prepared. They fail the branches of the method that needs them.
	GMErr   error
	MaskErr error

	// gm is the map the mask was staged from, on the mask's grid
	gm *models.Volume
}

// Result is the outcome of one (region, method) branch.
type Result struct {
	Tag  models.VolumeTag
	Path string
	Err  error
}

// Engine runs the configured PVC methods.
type Engine struct {
	params Params
	tools  toolkit.Toolkit
}

// NewEngine creates an Engine.
func NewEngine(params Params, tools toolkit.Toolkit) *Engine {
	return &Engine{params: params, tools: tools}
}

func (e *Engine) runs(m models.Method) bool {
	for _, x := range e.params.Methods {
		if x == m {
			return true
		}
	}
	return false
}

// ExcludeSubcortical zeroes gm wherever subcortical carries an excluded code.
func (e *Engine) ExcludeSubcortical(gm, subcortical *models.Volume) (*models.Volume, error) {
	return volume.ZeroWhere(gm, volume.SelectLabels(subcortical, e.params.Exclude...))
}

// Prepare computes the shared tissue state once per subject. The 4D mask is
// written to maskPath only when MG is among the methods.
func (e *Engine) Prepare(gm, wm, subcortical *models.Volume, maskPath string) *Tissue {
	t := &Tissue{gm: gm}
	if gmExcl, err := e.ExcludeSubcortical(gm, subcortical); err != nil {
		t.GMErr = fmt.Errorf("failed to exclude subcortical labels: %w", err)
	} else {
		t.GMExcl = gmExcl
	}
	if e.runs(models.MG) {
		if err := volume.SaveStack(maskPath, gm, wm); err != nil {
			t.MaskErr = fmt.Errorf("failed to stage tissue mask: %w", err)
		} else {
			t.MaskPath = maskPath
		}
	}
	return t
}

// ProbabilisticGM returns gmExcl * suvr.
func ProbabilisticGM(gmExcl, suvr *models.Volume) (*models.Volume, error) {
	return volume.Multiply(gmExcl, suvr, models.RolePVC)
}

// Correct runs every method on an SUVR volume already saved to disk and
// writes each result to path(tag). Failures are per branch.
func (e *Engine) Correct(ctx context.Context, tissue *Tissue, suvr *models.Volume, region models.Region, path func(models.VolumeTag) string) []Result {
	results := make([]Result, 0, len(e.params.Methods))
	for _, m := range e.params.Methods {
		tag := models.PVCTag(region, m)
		out := path(tag)
		results = append(results, Result{Tag: tag, Path: out, Err: e.correct(ctx, tissue, suvr, m, out)})
	}
	return results
}

func (e *Engine) correct(ctx context.Context, tissue *Tissue, suvr *models.Volume, m models.Method, out string) error {
	switch m {
	case models.GMProb:
		if tissue.GMErr != nil {
			return tissue.GMErr
		}
		v, err := ProbabilisticGM(tissue.GMExcl, suvr)
		if err != nil {
			return err
		}
		return volume.Save(out, v)
	case models.MG:
		if tissue.MaskErr != nil {
			return tissue.MaskErr
		}
		if tissue.MaskPath == "" {
			return &models.MissingArtifactError{Role: "tissue mask", Path: "(not staged)"}
		}
		if suvr.Path == "" {
			return &models.MissingArtifactError{Role: "SUVR volume", Path: "(not saved)"}
		}
		if tissue.gm != nil {
			if err := volume.SameGrid("partial volume correction", suvr, tissue.gm); err != nil {
				return err
			}
		}
		return e.tools.PartialVolumeCorrect(ctx, suvr.Path, tissue.MaskPath, e.params.PSF, m, out)
	default:
		return fmt.Errorf("unsupported PVC method %s", m)
	}
}
