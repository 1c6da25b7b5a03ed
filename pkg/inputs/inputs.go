// Package inputs resolves and validates every file a run consumes before
// anything is written.
package inputs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"petpipe/internal/models"
	"petpipe/pkg/naming"
)

// Resolver finds input files for one subject. Every lookup yields exactly
// one path or a typed error.
type Resolver struct {
	Subject string
}

// Exact returns path when it exists.
func (r Resolver) Exact(role, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", &models.MissingInputError{Subject: r.Subject, Role: role, Path: path}
	}
	return path, nil
}

// Glob returns the single file matching pattern.
func (r Resolver) Glob(role, pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad pattern for %s: %w", role, err)
	}
	switch len(matches) {
	case 0:
		return "", &models.MissingInputError{Subject: r.Subject, Role: role, Path: pattern}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &models.AmbiguousInputError{Subject: r.Subject, Role: role, Pattern: pattern, Matches: matches}
	}
}

// Meshes are the surfaces of one hemisphere.
type Meshes struct {
	Midthickness         string
	Sphere               string
	StandardMidthickness string
	StandardSphere       string
}

// Inputs are the resolved input paths of one run.
type Inputs struct {
	T1          string
	PET         string
	Tracer      string
	GM          string
	WM          string
	Atlas       string
	Subcortical string
	Affine      string
	Surfaces    map[models.Hemisphere]Meshes

	// Thickness is optional; hemispheres without a map skip the QC step.
	Thickness map[models.Hemisphere]string
}

// Locator knows where the upstream trees keep their files.
type Locator struct {
	AnatDir      string
	SurfDir      string
	TemplatesDir string
}

// Locate resolves every input for the layout's subject. All problems are
// reported together.
func (l Locator) Locate(layout naming.Layout) (*Inputs, error) {
	id := layout.ID
	r := Resolver{Subject: id.String()}
	anat := filepath.Join(l.AnatDir, "sub-"+id.Subject, "ses-"+id.Session)
	surf := filepath.Join(l.SurfDir, "sub-"+id.Subject, "ses-"+id.Session)
	prefix := id.String()

	in := &Inputs{
		Surfaces:  make(map[models.Hemisphere]Meshes),
		Thickness: make(map[models.Hemisphere]string),
	}
	c := &collector{r: r}

	in.T1 = c.exact("T1w", filepath.Join(anat, "anat", prefix+"_space-nativepro_T1w.nii.gz"))
	in.GM = c.exact("GM probability", filepath.Join(anat, "anat", prefix+"_space-nativepro_T1w_brain_pve_1.nii.gz"))
	in.WM = c.exact("WM probability", filepath.Join(anat, "anat", prefix+"_space-nativepro_T1w_brain_pve_2.nii.gz"))
	in.Subcortical = c.exact("subcortical labels", filepath.Join(anat, "parc", prefix+"_space-nativepro_T1w_atlas-subcortical.nii.gz"))
	in.Atlas = c.exact("atlas segmentation", filepath.Join(anat, "parc", prefix+"_space-fsnative_atlas-aparc+aseg.nii.gz"))
	in.Affine = c.glob("affine transform", filepath.Join(anat, "xfm", prefix+"_from-fsnative_to_nativepro_T1w_*GenericAffine.mat"))
	in.PET = c.glob("PET", layout.PETPattern())
	if in.PET != "" {
		in.Tracer = Tracer(in.PET)
	}

	for _, h := range models.Hemispheres() {
		hemi := fmt.Sprintf("%s_hemi-%s", prefix, h)
		in.Surfaces[h] = Meshes{
			Midthickness:         c.exact("native midthickness "+string(h), filepath.Join(surf, "surf", hemi+"_space-nativepro_surf-fsnative_label-midthickness.surf.gii")),
			Sphere:               c.exact("native sphere "+string(h), filepath.Join(surf, "surf", hemi+"_space-nativepro_surf-fsnative_label-sphere.surf.gii")),
			StandardMidthickness: c.exact("fsLR-32k midthickness "+string(h), filepath.Join(surf, "surf", hemi+"_space-nativepro_surf-fsLR-32k_label-midthickness.surf.gii")),
			StandardSphere:       c.exact("fsLR-32k sphere "+string(h), filepath.Join(l.TemplatesDir, fmt.Sprintf("fsLR-32k.%s.sphere.reg.surf.gii", h))),
		}

		if p, err := r.Exact("thickness "+string(h), filepath.Join(surf, "maps", hemi+"_surf-fsLR-32k_label-thickness.func.gii")); err == nil {
			in.Thickness[h] = p
		}
	}

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return in, nil
}

type collector struct {
	r    Resolver
	errs []error
}

func (c *collector) exact(role, path string) string {
	p, err := c.r.Exact(role, path)
	if err != nil {
		c.errs = append(c.errs, err)
	}
	return p
}

func (c *collector) glob(role, pattern string) string {
	p, err := c.r.Glob(role, pattern)
	if err != nil {
		c.errs = append(c.errs, err)
	}
	return p
}

// Tracer extracts the trc entity from a BIDS file name.
func Tracer(path string) string {
	for _, part := range strings.Split(filepath.Base(path), "_") {
		if v, ok := strings.CutPrefix(part, "trc-"); ok {
			return v
		}
	}
	return ""
}
