package toolkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"petpipe/internal/models"
	"petpipe/pkg/logging"
)

// Toolkit is the set of external operations the pipeline needs. Every call
// returns an ExternalOperationError when the tool fails or its output file
// does not exist afterwards.
type Toolkit interface {
	// LabelTransform resamples a label image onto reference through an
	// affine transform with nearest-label interpolation.
	LabelTransform(ctx context.Context, in, reference, affine, out string) error
	// VolumeToSurface samples a volume onto a surface mesh.
	VolumeToSurface(ctx context.Context, volume, surface, out string) error
	// MetricResample moves a metric from currentSphere to newSphere.
	MetricResample(ctx context.Context, metric, currentSphere, newSphere, out string) error
	// MetricSmooth smooths a metric geodesically on surface with the given FWHM in mm.
	MetricSmooth(ctx context.Context, surface, metric string, fwhm float64, out string) error
	// PartialVolumeCorrect runs a deconvolution-based PVC method with a
	// tissue mask and PSF FWHMs in mm.
	PartialVolumeCorrect(ctx context.Context, in, mask string, psf [3]float64, method models.Method, out string) error
}

// Options configures Tools.
type Options struct {
	Workbench       string
	PETPVC          string
	ApplyTransforms string
	Threads         int
	MappingMethod   string

	// Log carries the subject fields; the package logger when nil
	Log *logrus.Entry
}

// Tools implements Toolkit with the real executables.
type Tools struct {
	opts    Options
	builder CommandBuilder
}

// New returns Tools that build commands with builder.
func New(opts Options, builder CommandBuilder) *Tools {
	if opts.MappingMethod == "" {
		opts.MappingMethod = "trilinear"
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logging.Logger())
	}
	return &Tools{opts: opts, builder: builder}
}

func (t *Tools) env() []string {
	if t.opts.Threads < 1 {
		return nil
	}
	n := strconv.Itoa(t.opts.Threads)
	return []string{
		"OMP_NUM_THREADS=" + n,
		"ITK_GLOBAL_DEFAULT_NUMBER_OF_THREADS=" + n,
	}
}

func (t *Tools) run(ctx context.Context, op, out, name string, args ...string) error {
	log := t.opts.Log.WithFields(logrus.Fields{"tool": name, "op": op})
	log.Debugf("%s %s", name, strings.Join(args, " "))

	output, err := t.builder.BuildCommand(ctx, t.env(), name, args...).Run()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &models.ExternalOperationError{Op: op, Tool: name, Output: out, Err: err}
	}
	if _, err := os.Stat(out); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.New("tool exited cleanly but produced no output")
		}
		return &models.ExternalOperationError{Op: op, Tool: name, Output: out, Err: err}
	}
	return nil
}

// LabelTransform runs antsApplyTransforms with GenericLabel interpolation.
func (t *Tools) LabelTransform(ctx context.Context, in, reference, affine, out string) error {
	return t.run(ctx, "label transform", out, t.opts.ApplyTransforms,
		"-d", "3", "-i", in, "-r", reference, "-n", "GenericLabel", "-t", affine, "-o", out)
}

// VolumeToSurface runs wb_command -volume-to-surface-mapping.
func (t *Tools) VolumeToSurface(ctx context.Context, volume, surface, out string) error {
	return t.run(ctx, "volume to surface", out, t.opts.Workbench,
		"-volume-to-surface-mapping", volume, surface, out, "-"+t.opts.MappingMethod)
}

// MetricResample runs wb_command -metric-resample with barycentric weights.
func (t *Tools) MetricResample(ctx context.Context, metric, currentSphere, newSphere, out string) error {
	return t.run(ctx, "metric resample", out, t.opts.Workbench,
		"-metric-resample", metric, currentSphere, newSphere, "BARYCENTRIC", out)
}

// MetricSmooth runs wb_command -metric-smoothing with the kernel given as FWHM.
func (t *Tools) MetricSmooth(ctx context.Context, surface, metric string, fwhm float64, out string) error {
	return t.run(ctx, "metric smooth", out, t.opts.Workbench,
		"-metric-smoothing", surface, metric, formatFloat(fwhm), out, "-fwhm")
}

// PartialVolumeCorrect runs petpvc.
func (t *Tools) PartialVolumeCorrect(ctx context.Context, in, mask string, psf [3]float64, method models.Method, out string) error {
	return t.run(ctx, "partial volume correction", out, t.opts.PETPVC,
		"-i", in, "-m", mask, "-o", out, "--pvc", method.String(),
		"-x", formatFloat(psf[0]), "-y", formatFloat(psf[1]), "-z", formatFloat(psf[2]))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
