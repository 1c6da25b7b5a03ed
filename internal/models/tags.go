package models

import (
	"fmt"
	"strings"
)

// Identity is the (subject, session) pair that namespaces a pipeline run.
type Identity struct {
	Subject string
	Session string
}

// NewIdentity builds an Identity, accepting ids with or without their
// "sub-" / "ses-" prefixes.
func NewIdentity(subject, session string) Identity {
	return Identity{
		Subject: strings.TrimPrefix(subject, "sub-"),
		Session: strings.TrimPrefix(session, "ses-"),
	}
}

// String returns the BIDS prefix, e.g. "sub-01_ses-02".
func (id Identity) String() string {
	return fmt.Sprintf("sub-%s_ses-%s", id.Subject, id.Session)
}

// Region is a reference region used as SUVR denominator.
type Region int

// Reference regions in processing order. The reference-means table uses
// this order for its value columns.
const (
	Brainstem Region = iota
	CerebellarGM
	Composite
)

var regionNames = [...]string{"brainstem", "cerebellarGM", "composite"}

// Regions returns every reference region in processing order.
func Regions() []Region {
	return []Region{Brainstem, CerebellarGM, Composite}
}

func (r Region) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("region(%d)", int(r))
	}
	return regionNames[r]
}

// Method is a partial-volume-correction strategy.
type Method int

const (
	// GMProb weights the SUVR volume by gray-matter probability.
	GMProb Method = iota
	// MG is the Muller-Gartner deconvolution run by the external PVC tool.
	MG
)

var methodNames = [...]string{"GMprob", "MG"}

// Methods returns both PVC methods in processing order.
func Methods() []Method {
	return []Method{GMProb, MG}
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod maps a method name ("GMprob", "MG") to its Method.
func ParseMethod(name string) (Method, error) {
	for i, n := range methodNames {
		if strings.EqualFold(n, name) {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("unknown PVC method %q", name)
}

// Hemisphere is a cortical hemisphere.
type Hemisphere string

const (
	Left  Hemisphere = "L"
	Right Hemisphere = "R"
)

// Hemispheres returns left then right.
func Hemispheres() []Hemisphere {
	return []Hemisphere{Left, Right}
}

// Tier is a surface resolution tier.
type Tier string

const (
	// Native is the subject's own surface tessellation.
	Native Tier = "fsnative"
	// Standard is the template tessellation shared across subjects.
	Standard Tier = "fsLR-32k"
)

// VolumeTag identifies a PVC volume. SUVR volumes use Corrected == false.
type VolumeTag struct {
	Region    Region
	Method    Method
	Corrected bool
}

// SUVRTag tags an uncorrected SUVR volume.
func SUVRTag(r Region) VolumeTag {
	return VolumeTag{Region: r}
}

// PVCTag tags a partial-volume-corrected volume.
func PVCTag(r Region, m Method) VolumeTag {
	return VolumeTag{Region: r, Method: m, Corrected: true}
}

// Desc returns the desc entity value, e.g. "SUVRbrainstem" or
// "SUVRbrainstemPVCMG".
func (t VolumeTag) Desc() string {
	if !t.Corrected {
		return "SUVR" + t.Region.String()
	}
	return "SUVR" + t.Region.String() + "PVC" + t.Method.String()
}

func (t VolumeTag) String() string {
	if !t.Corrected {
		return t.Region.String()
	}
	return t.Region.String() + "/" + t.Method.String()
}

// MetricTag identifies a surface metric derived from a PVC volume. Kernel is
// the smoothing FWHM in mm; zero means unsmoothed.
type MetricTag struct {
	Volume     VolumeTag
	Hemisphere Hemisphere
	Tier       Tier
	Kernel     float64
}

func (t MetricTag) String() string {
	s := fmt.Sprintf("%s/hemi-%s/%s", t.Volume, t.Hemisphere, t.Tier)
	if t.Kernel > 0 {
		s += fmt.Sprintf("/smooth-%gmm", t.Kernel)
	}
	return s
}
