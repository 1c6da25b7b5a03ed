// Package fixture lays out synthetic upstream trees for tests.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"

	"petpipe/internal/models"
)

// Tree places the anat, surf, template and output directories of one
// subject below Root.
type Tree struct {
	Root   string
	ID     models.Identity
	Tracer string
}

func (t Tree) prefix() string { return t.ID.String() }

func (t Tree) subject(base string) string {
	return filepath.Join(base, "sub-"+t.ID.Subject, "ses-"+t.ID.Session)
}

func (t Tree) AnatDir() string      { return filepath.Join(t.Root, "anat") }
func (t Tree) SurfDir() string      { return filepath.Join(t.Root, "surf") }
func (t Tree) TemplatesDir() string { return filepath.Join(t.Root, "templates") }
func (t Tree) OutDir() string       { return filepath.Join(t.Root, "out") }

func (t Tree) T1() string {
	return filepath.Join(t.subject(t.AnatDir()), "anat", t.prefix()+"_space-nativepro_T1w.nii.gz")
}

func (t Tree) GM() string {
	return filepath.Join(t.subject(t.AnatDir()), "anat", t.prefix()+"_space-nativepro_T1w_brain_pve_1.nii.gz")
}

func (t Tree) WM() string {
	return filepath.Join(t.subject(t.AnatDir()), "anat", t.prefix()+"_space-nativepro_T1w_brain_pve_2.nii.gz")
}

func (t Tree) Subcortical() string {
	return filepath.Join(t.subject(t.AnatDir()), "parc", t.prefix()+"_space-nativepro_T1w_atlas-subcortical.nii.gz")
}

func (t Tree) Atlas() string {
	return filepath.Join(t.subject(t.AnatDir()), "parc", t.prefix()+"_space-fsnative_atlas-aparc+aseg.nii.gz")
}

func (t Tree) Affine() string {
	return filepath.Join(t.subject(t.AnatDir()), "xfm", t.prefix()+"_from-fsnative_to_nativepro_T1w_0GenericAffine.mat")
}

// PET is the coregistered PET inside the output tree.
func (t Tree) PET() string {
	return filepath.Join(t.subject(filepath.Join(t.OutDir(), "petpipe")), "pet",
		fmt.Sprintf("%s_trc-%s_space-nativepro_pet.nii.gz", t.prefix(), t.Tracer))
}

func (t Tree) hemi(h models.Hemisphere) string {
	return fmt.Sprintf("%s_hemi-%s", t.prefix(), h)
}

func (t Tree) Midthickness(h models.Hemisphere) string {
	return filepath.Join(t.subject(t.SurfDir()), "surf", t.hemi(h)+"_space-nativepro_surf-fsnative_label-midthickness.surf.gii")
}

func (t Tree) Sphere(h models.Hemisphere) string {
	return filepath.Join(t.subject(t.SurfDir()), "surf", t.hemi(h)+"_space-nativepro_surf-fsnative_label-sphere.surf.gii")
}

func (t Tree) StandardMidthickness(h models.Hemisphere) string {
	return filepath.Join(t.subject(t.SurfDir()), "surf", t.hemi(h)+"_space-nativepro_surf-fsLR-32k_label-midthickness.surf.gii")
}

func (t Tree) StandardSphere(h models.Hemisphere) string {
	return filepath.Join(t.TemplatesDir(), fmt.Sprintf("fsLR-32k.%s.sphere.reg.surf.gii", h))
}

func (t Tree) Thickness(h models.Hemisphere) string {
	return filepath.Join(t.subject(t.SurfDir()), "maps", t.hemi(h)+"_surf-fsLR-32k_label-thickness.func.gii")
}

// SurfaceFiles lists every mesh, template and thickness file.
func (t Tree) SurfaceFiles() []string {
	var paths []string
	for _, h := range models.Hemispheres() {
		paths = append(paths,
			t.Midthickness(h), t.Sphere(h), t.StandardMidthickness(h),
			t.StandardSphere(h), t.Thickness(h))
	}
	return paths
}

// Touch creates each path with placeholder content.
func Touch(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0644); err != nil {
			return err
		}
	}
	return nil
}
