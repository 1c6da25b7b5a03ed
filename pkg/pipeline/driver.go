// Package pipeline drives one subject/session through reference-region
// construction, SUVR normalization, partial-volume correction and surface
// projection.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"petpipe/internal/models"
	"petpipe/pkg/config"
	"petpipe/pkg/inputs"
	"petpipe/pkg/logging"
	"petpipe/pkg/naming"
	"petpipe/pkg/pvc"
	"petpipe/pkg/reference"
	"petpipe/pkg/surface"
	"petpipe/pkg/suvr"
	"petpipe/pkg/toolkit"
	"petpipe/pkg/visualization"
	"petpipe/pkg/volume"
	"petpipe/pkg/workspace"
)

// Params identifies the run and where its inputs and outputs live.
type Params struct {
	// Subject and Session ids, with or without their sub-/ses- prefixes
	Subject string
	Session string

	// OutputDir is the derivatives root; outputs go below
	// <OutputDir>/<output.root>/sub-S/ses-E, which also holds the
	// coregistered PET input
	OutputDir string

	// AnatDir is the structural processing tree (T1w, tissue maps,
	// parcellations, transforms)
	AnatDir string

	// SurfDir is the surface processing tree (meshes, thickness)
	SurfDir string
}

// Driver runs the pipeline for one subject/session.
type Driver struct {
	params *Params
	cfg    *config.Config
	tools  toolkit.Toolkit
}

// NewDriver creates a driver. tools runs the external operations; see
// NewTools for the production implementation.
func NewDriver(params *Params, cfg *config.Config, tools toolkit.Toolkit) *Driver {
	return &Driver{params: params, cfg: cfg, tools: tools}
}

// NewTools builds the external toolkit described by cfg.
func NewTools(cfg *config.Config, log *logrus.Entry) *toolkit.Tools {
	return toolkit.New(toolkit.Options{
		Workbench:       cfg.Tools.Workbench,
		PETPVC:          cfg.Tools.PETPVC,
		ApplyTransforms: cfg.Tools.ApplyTransforms,
		Threads:         cfg.Processing.Threads,
		MappingMethod:   cfg.Processing.MappingMethod,
		Log:             log,
	}, toolkit.NewRealCommandBuilder(cfg.Tools.Wrapper...))
}

// run holds the state shared by the stages of one Run call.
type run struct {
	*Driver
	log    *logrus.Entry
	report *Report
	layout naming.Layout
	in     *inputs.Inputs
	ws     *workspace.Workspace
	table  *suvr.Table

	pet, gm, wm, atlas, subcortical *models.Volume

	masks map[models.Region]*models.Volume
	suvrs map[models.Region]*models.Volume
	pvcs  []surface.Source
}

// Run processes the subject. The returned report is never nil. A non-nil
// error means the run failed as a whole; branch failures are only recorded
// in the report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	id := models.NewIdentity(d.params.Subject, d.params.Session)
	r := &run{
		Driver: d,
		log:    logging.ForSubject(id),
		report: newReport(id),
		layout: naming.NewLayout(d.params.OutputDir, d.cfg.Output.Root, id),
		masks:  make(map[models.Region]*models.Volume),
		suvrs:  make(map[models.Region]*models.Volume),
	}

	// Step 1: Validate inputs. Nothing is created before this passes.
	r.log.Info("Step 1: Validating inputs...")
	in, err := inputs.Locator{
		AnatDir:      d.params.AnatDir,
		SurfDir:      d.params.SurfDir,
		TemplatesDir: d.cfg.Tools.TemplatesDir,
	}.Locate(r.layout)
	if err != nil {
		err = fmt.Errorf("failed to validate inputs: %w", err)
		r.report.finish(err)
		return r.report, err
	}
	r.in = in
	r.layout = r.layout.WithTracer(in.Tracer)
	r.report.Tracer = in.Tracer
	r.log = r.log.WithField("tracer", in.Tracer)

	r.ws, err = workspace.Acquire(d.cfg.Workdir.TmpDir, id.String(), !d.cfg.Output.Cleanup)
	if err != nil {
		r.report.finish(err)
		return r.report, err
	}
	defer func() {
		if err := r.ws.Release(); err != nil {
			r.log.Warnf("Failed to clean up: %v", err)
		}
	}()
	if r.ws.Kept() {
		r.log.Infof("Keeping working directory %s", r.ws.Dir)
	}

	err = r.process(ctx)

	if r.table != nil {
		path := r.layout.ReferenceTable()
		if werr := r.table.WriteCSV(path); werr != nil {
			r.record("table", "reference means", werr)
		} else {
			r.record("table", "reference means", nil, path)
		}
	}
	r.report.finish(err)

	if merr := WriteManifest(r.layout.Manifest(), NewManifest(r.report, d.cfg)); merr != nil {
		r.log.Warnf("Failed to write manifest: %v", merr)
	}
	return r.report, err
}

func (r *run) process(ctx context.Context) error {
	for _, dir := range []string{r.layout.AnatDir(), r.layout.PETDir(), r.layout.MapsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Step 2: Bring the atlas into T1 space
	r.log.Info("Step 2: Transforming atlas into T1 space...")
	atlasT1 := r.layout.Work(r.ws.Dir, "space-nativepro_atlas-aparc+aseg.nii.gz")
	if err := r.tools.LabelTransform(ctx, r.in.Atlas, r.in.T1, r.in.Affine, atlasT1); err != nil {
		return fmt.Errorf("failed to transform atlas: %w", err)
	}

	// Step 3: Load volumes on the T1 grid
	r.log.Info("Step 3: Loading volumes...")
	if err := r.loadVolumes(atlasT1); err != nil {
		return err
	}

	// Step 4: Reference masks
	r.log.Info("Step 4: Building reference masks...")
	r.buildMasks()

	// Step 5: SUVR
	r.log.Info("Step 5: Normalizing by reference regions...")
	r.normalize()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 6: PVC
	r.log.Info("Step 6: Applying partial volume correction...")
	if err := r.correct(ctx); err != nil {
		return err
	}

	// Step 7: Surfaces
	r.log.Info("Step 7: Projecting to surfaces...")
	r.project(ctx)

	if r.cfg.Output.Snapshots {
		r.log.Info("Saving QC snapshots...")
		r.snapshots()
	}
	return nil
}

func (r *run) loadVolumes(atlasPath string) error {
	t1, err := volume.Load(r.in.T1, models.RoleT1)
	if err != nil {
		return err
	}

	// Every branch reads PET and the atlas, so they must match T1. The
	// tissue maps are checked by the operations that combine them.
	load := []struct {
		dst    **models.Volume
		path   string
		role   models.Role
		shared bool
	}{
		{&r.pet, r.in.PET, models.RolePET, true},
		{&r.atlas, atlasPath, models.RoleAtlas, true},
		{&r.gm, r.in.GM, models.RoleGMProb, false},
		{&r.wm, r.in.WM, models.RoleWMProb, false},
		{&r.subcortical, r.in.Subcortical, models.RoleSubcortical, false},
	}
	for _, l := range load {
		v, err := volume.Load(l.path, l.role)
		if err != nil {
			return err
		}
		if l.shared {
			if err := volume.SameGrid("load", t1, v); err != nil {
				return err
			}
		}
		*l.dst = v
	}
	return nil
}

func (r *run) buildMasks() {
	builder := reference.NewBuilder(reference.Labels{
		Brainstem:          r.cfg.Labels.Brainstem,
		CerebellarGM:       r.cfg.Labels.CerebellarGM,
		SubcorticalExclude: r.cfg.Labels.SubcorticalExclude,
		WMThreshold:        r.cfg.Processing.WMThreshold,
	})
	for _, m := range builder.Build(r.atlas, r.subcortical, r.wm) {
		name := m.Region.String()
		if m.Err != nil {
			r.record("reference", name, m.Err)
			continue
		}
		path := r.layout.Mask(m.Region)
		if err := volume.Save(path, m.Volume); err != nil {
			r.record("reference", name, err)
			continue
		}
		r.masks[m.Region] = m.Volume
		r.record("reference", name, nil, path)
	}
}

func (r *run) normalize() {
	r.table = suvr.NewTable(r.report.Identity)
	for _, region := range models.Regions() {
		mask, ok := r.masks[region]
		if !ok {
			continue
		}
		name := region.String()
		out, mean, err := suvr.Normalize(r.pet, mask, region)
		if err != nil {
			r.record("suvr", name, err)
			continue
		}
		path := r.layout.Volume(models.SUVRTag(region))
		if err := volume.Save(path, out); err != nil {
			r.record("suvr", name, err)
			continue
		}
		// only means backed by a written SUVR volume reach the table
		r.table.Record(region, mean)
		r.log.WithField("branch", name).Infof("Reference mean %g", mean)
		r.suvrs[region] = out
		r.record("suvr", name, nil, path)
	}
	r.report.ReferenceMeans = r.table.Means()
}

func (r *run) correct(ctx context.Context) error {
	methods, err := r.cfg.Methods()
	if err != nil {
		return err
	}
	engine := pvc.NewEngine(pvc.Params{
		PSF:     r.cfg.Processing.PSF,
		Exclude: r.cfg.Labels.SubcorticalExclude,
		Methods: methods,
	}, r.tools)

	tissue := engine.Prepare(r.gm, r.wm, r.subcortical, r.layout.Work(r.ws.Dir, "space-nativepro_desc-GMWM_probseg.nii.gz"))

	for _, region := range models.Regions() {
		s, ok := r.suvrs[region]
		if !ok {
			continue
		}
		for _, res := range engine.Correct(ctx, tissue, s, region, r.layout.Volume) {
			if res.Err != nil {
				r.record("pvc", res.Tag.String(), res.Err)
				continue
			}
			r.record("pvc", res.Tag.String(), nil, res.Path)
			r.pvcs = append(r.pvcs, surface.Source{Tag: res.Tag, Path: res.Path})
		}
	}
	return nil
}

func (r *run) project(ctx context.Context) {
	projector := surface.NewProjector(surface.Params{
		Kernels:         r.cfg.Processing.SmoothingKernels,
		ThicknessKernel: r.cfg.Processing.ThicknessKernel,
		Parallel:        r.cfg.Processing.ParallelBranches,
		Log:             r.log,
	}, r.tools, r.layout)

	results := projector.Project(ctx, r.pvcs, r.in.Surfaces)
	results = append(results, projector.SmoothThickness(ctx, r.in.Thickness, r.in.Surfaces)...)
	for _, res := range results {
		stage := "surface"
		if res.Thickness {
			stage = "thickness"
		}
		r.record(stage, res.Name(), res.Err, res.Outputs...)
	}
}

func (r *run) snapshots() {
	for _, region := range models.Regions() {
		v, ok := r.suvrs[region]
		if !ok {
			continue
		}
		tag := models.SUVRTag(region)
		_, err := visualization.NewViewer(v).SaveSnapshots(func(axis string) string {
			return r.layout.Snapshot(tag, axis)
		})
		if err != nil {
			r.log.WithField("branch", tag.String()).Warnf("Failed to save snapshot: %v", err)
		}
	}
}

// record adds a branch outcome to the report, logging failures.
func (r *run) record(stage, branch string, err error, outputs ...string) {
	if err != nil {
		r.log.WithFields(logrus.Fields{"stage": stage, "branch": branch}).Errorf("Branch failed: %v", err)
	}
	r.report.add(stage, branch, err, outputs...)
}
