// Package naming turns typed artifact tags into BIDS-style output paths.
// It is the only place where file names are spelled out.
package naming

import (
	"path/filepath"
	"strconv"
	"strings"

	"petpipe/internal/models"
)

// Entity is one key-value pair of a BIDS file name.
type Entity struct {
	Key   string
	Value string
}

// Build joins the non-empty entities with "_" and appends the suffix and
// extension, e.g. Build("pet", ".nii.gz", {"sub","01"}, {"desc","x"}) ->
// "sub-01_desc-x_pet.nii.gz".
func Build(suffix, ext string, entities ...Entity) string {
	parts := make([]string, 0, len(entities)+1)
	for _, e := range entities {
		if e.Value == "" {
			continue
		}
		parts = append(parts, e.Key+"-"+e.Value)
	}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, "_") + ext
}

// Kernel formats a smoothing FWHM as an entity value ("10mm"). Zero yields
// the empty string so the entity is omitted.
func Kernel(fwhm float64) string {
	if fwhm <= 0 {
		return ""
	}
	return strconv.FormatFloat(fwhm, 'f', -1, 64) + "mm"
}

// Layout maps artifacts of one subject/session run to paths below
// <output>/<root>/sub-<S>/ses-<E>.
type Layout struct {
	Dir    string
	ID     models.Identity
	Tracer string
}

// NewLayout returns the layout for id under outputDir/root.
func NewLayout(outputDir, root string, id models.Identity) Layout {
	return Layout{
		Dir: filepath.Join(outputDir, root, "sub-"+id.Subject, "ses-"+id.Session),
		ID:  id,
	}
}

// WithTracer returns a copy of the layout carrying the tracer entity.
func (l Layout) WithTracer(tracer string) Layout {
	l.Tracer = tracer
	return l
}

func (l Layout) sub() Entity { return Entity{"sub", l.ID.Subject} }
func (l Layout) ses() Entity { return Entity{"ses", l.ID.Session} }
func (l Layout) trc() Entity { return Entity{"trc", l.Tracer} }

// AnatDir holds reference masks.
func (l Layout) AnatDir() string { return filepath.Join(l.Dir, "anat") }

// PETDir holds the coregistered PET input, SUVR and PVC volumes.
func (l Layout) PETDir() string { return filepath.Join(l.Dir, "pet") }

// MapsDir holds surface metrics.
func (l Layout) MapsDir() string { return filepath.Join(l.Dir, "maps") }

// QCDir holds snapshots.
func (l Layout) QCDir() string { return filepath.Join(l.Dir, "qc") }

// PETPattern is the glob matching the coregistered PET input.
func (l Layout) PETPattern() string {
	return filepath.Join(l.PETDir(), Build("pet", ".nii.gz", l.sub(), l.ses(), Entity{"trc", "*"}, Entity{"space", "nativepro"}))
}

// Mask is the path of a reference-region mask.
func (l Layout) Mask(r models.Region) string {
	return filepath.Join(l.AnatDir(), Build("mask", ".nii.gz", l.sub(), l.ses(), Entity{"space", "nativepro"}, Entity{"desc", r.String()}))
}

// Volume is the path of an SUVR or PVC volume.
func (l Layout) Volume(t models.VolumeTag) string {
	return filepath.Join(l.PETDir(), Build("pet", ".nii.gz", l.sub(), l.ses(), l.trc(), Entity{"desc", t.Desc()}))
}

// Metric is the path of a surface metric.
func (l Layout) Metric(t models.MetricTag) string {
	return filepath.Join(l.MapsDir(), Build("pet", ".func.gii",
		l.sub(), l.ses(),
		Entity{"hemi", string(t.Hemisphere)},
		Entity{"surf", string(t.Tier)},
		l.trc(),
		Entity{"desc", t.Volume.Desc()},
		Entity{"smooth", Kernel(t.Kernel)},
	))
}

// Thickness is the path of the smoothed QC thickness map.
func (l Layout) Thickness(h models.Hemisphere, fwhm float64) string {
	return filepath.Join(l.MapsDir(), Build("", ".func.gii",
		l.sub(), l.ses(),
		Entity{"hemi", string(h)},
		Entity{"surf", string(models.Standard)},
		Entity{"label", "thickness"},
		Entity{"smooth", Kernel(fwhm)},
	))
}

// ReferenceTable is the path of the reference-means table.
func (l Layout) ReferenceTable() string {
	return filepath.Join(l.PETDir(), Build("refmeans", ".csv", l.sub(), l.ses(), l.trc(), Entity{"desc", "SUVR"}))
}

// Manifest is the path of the run manifest.
func (l Layout) Manifest() string {
	return filepath.Join(l.Dir, Build("manifest", ".json", l.sub(), l.ses(), l.trc(), Entity{"desc", "petpipe"}))
}

// Snapshot is the path of a QC slice image.
func (l Layout) Snapshot(t models.VolumeTag, axis string) string {
	return filepath.Join(l.QCDir(), Build("pet", ".jpg", l.sub(), l.ses(), l.trc(), Entity{"desc", t.Desc()}, Entity{"axis", axis}))
}

// Work names intermediate files inside a working directory.
func (l Layout) Work(dir, name string) string {
	return filepath.Join(dir, l.ID.String()+"_"+name)
}
