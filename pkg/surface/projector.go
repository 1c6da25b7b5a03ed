// Package surface projects PVC volumes onto cortical surfaces and smooths
// the resulting metrics on the standard mesh.
package surface

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"petpipe/internal/models"
	"petpipe/pkg/inputs"
	"petpipe/pkg/logging"
	"petpipe/pkg/toolkit"
)

// Namer names metric outputs. naming.Layout implements it.
type Namer interface {
	Metric(t models.MetricTag) string
	Thickness(h models.Hemisphere, fwhm float64) string
}

// Params configures a Projector.
type Params struct {
	// Kernels are the smoothing FWHMs applied to every standard metric
	Kernels []float64

	// ThicknessKernel is the FWHM for the QC thickness map
	ThicknessKernel float64

	// Parallel bounds the number of branches in flight
	Parallel int

	// Log carries the subject fields; the package logger when nil
	Log *logrus.Entry
}

// Source is a PVC volume on disk.
type Source struct {
	Tag  models.VolumeTag
	Path string
}

// Result is the outcome of one branch. Outputs lists every file the branch
// wrote, including those written before a failure.
type Result struct {
	Tag        models.VolumeTag
	Hemisphere models.Hemisphere
	Thickness  bool
	Outputs    []string
	Err        error
}

// Name identifies the branch in logs and reports.
func (r Result) Name() string {
	if r.Thickness {
		return fmt.Sprintf("thickness/hemi-%s", r.Hemisphere)
	}
	return fmt.Sprintf("%s/hemi-%s", r.Tag, r.Hemisphere)
}

// Projector runs the volume-to-surface branches.
type Projector struct {
	params Params
	tools  toolkit.Toolkit
	namer  Namer
}

// NewProjector creates a Projector.
func NewProjector(params Params, tools toolkit.Toolkit, namer Namer) *Projector {
	if params.Parallel < 1 {
		params.Parallel = 1
	}
	if params.Log == nil {
		params.Log = logrus.NewEntry(logging.Logger())
	}
	return &Projector{params: params, tools: tools, namer: namer}
}

// Project runs one branch per (source, hemisphere). Results come back in
// source-major, hemisphere-minor order regardless of completion order.
func (p *Projector) Project(ctx context.Context, sources []Source, meshes map[models.Hemisphere]inputs.Meshes) []Result {
	hemis := models.Hemispheres()
	results := make([]Result, len(sources)*len(hemis))

	var g errgroup.Group
	g.SetLimit(p.params.Parallel)
	for i, src := range sources {
		for j, h := range hemis {
			idx := i*len(hemis) + j
			src, h := src, h
			g.Go(func() error {
				results[idx] = p.branch(ctx, src, h, meshes[h])
				return nil
			})
		}
	}
	g.Wait()
	return results
}

func (p *Projector) branch(ctx context.Context, src Source, h models.Hemisphere, m inputs.Meshes) Result {
	res := Result{Tag: src.Tag, Hemisphere: h}
	log := p.params.Log.WithFields(logrus.Fields{"stage": "surface", "branch": res.Name()})
	log.Debug("Projecting to surface")

	tag := models.MetricTag{Volume: src.Tag, Hemisphere: h, Tier: models.Native}
	native := p.namer.Metric(tag)
	if err := p.tools.VolumeToSurface(ctx, src.Path, m.Midthickness, native); err != nil {
		res.Err = err
		return res
	}
	if err := requireArtifact("native metric", native); err != nil {
		res.Err = err
		return res
	}
	res.Outputs = append(res.Outputs, native)

	tag.Tier = models.Standard
	standard := p.namer.Metric(tag)
	if err := p.tools.MetricResample(ctx, native, m.Sphere, m.StandardSphere, standard); err != nil {
		res.Err = err
		return res
	}
	if err := requireArtifact("standard metric", standard); err != nil {
		res.Err = err
		return res
	}
	res.Outputs = append(res.Outputs, standard)

	var errs []error
	for _, k := range p.params.Kernels {
		tag.Kernel = k
		out := p.namer.Metric(tag)
		if err := p.tools.MetricSmooth(ctx, m.StandardMidthickness, standard, k, out); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Outputs = append(res.Outputs, out)
	}
	res.Err = errors.Join(errs...)
	return res
}

// SmoothThickness smooths the standard-mesh cortical thickness of each
// hemisphere that has one, for QC.
func (p *Projector) SmoothThickness(ctx context.Context, thickness map[models.Hemisphere]string, meshes map[models.Hemisphere]inputs.Meshes) []Result {
	var results []Result
	for _, h := range models.Hemispheres() {
		in, ok := thickness[h]
		if !ok {
			p.params.Log.WithField("stage", "thickness").Warnf("No thickness map for hemisphere %s, skipping", h)
			continue
		}
		res := Result{Hemisphere: h, Thickness: true}
		out := p.namer.Thickness(h, p.params.ThicknessKernel)
		if err := p.tools.MetricSmooth(ctx, meshes[h].StandardMidthickness, in, p.params.ThicknessKernel, out); err != nil {
			res.Err = err
		} else {
			res.Outputs = []string{out}
		}
		results = append(results, res)
	}
	return results
}

func requireArtifact(role, path string) error {
	if _, err := os.Stat(path); err != nil {
		return &models.MissingArtifactError{Role: role, Path: path}
	}
	return nil
}
