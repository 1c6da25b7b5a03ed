package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"petpipe/pkg/config"
)

// Manifest is the JSON record written next to the outputs of a run.
type Manifest struct {
	RunID          string             `json:"run_id"`
	Subject        string             `json:"subject"`
	Session        string             `json:"session"`
	Tracer         string             `json:"tracer"`
	Status         Status             `json:"status"`
	Error          string             `json:"error,omitempty"`
	Started        time.Time          `json:"started"`
	Finished       time.Time          `json:"finished"`
	ReferenceMeans map[string]float64 `json:"reference_means"`
	Settings       ManifestSettings   `json:"settings"`
	Branches       []ManifestBranch   `json:"branches"`
}

// ManifestSettings records the processing parameters of the run.
type ManifestSettings struct {
	WMThreshold      float64    `json:"wm_threshold"`
	PSF              [3]float64 `json:"psf"`
	PVCMethods       []string   `json:"pvc_methods"`
	SmoothingKernels []float64  `json:"smoothing_kernels"`
	Threads          int        `json:"threads"`
}

// ManifestBranch is one branch of the run.
type ManifestBranch struct {
	Stage   string   `json:"stage"`
	Branch  string   `json:"branch"`
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// NewManifest builds the manifest of a finished run.
func NewManifest(r *Report, cfg *config.Config) *Manifest {
	m := &Manifest{
		RunID:          r.RunID,
		Subject:        r.Identity.Subject,
		Session:        r.Identity.Session,
		Tracer:         r.Tracer,
		Status:         r.Status,
		Started:        r.Started,
		Finished:       r.Finished,
		ReferenceMeans: r.ReferenceMeans,
		Settings: ManifestSettings{
			WMThreshold:      cfg.Processing.WMThreshold,
			PSF:              cfg.Processing.PSF,
			PVCMethods:       cfg.Processing.PVCMethods,
			SmoothingKernels: cfg.Processing.SmoothingKernels,
			Threads:          cfg.Processing.Threads,
		},
		Branches: make([]ManifestBranch, 0, len(r.Branches)),
	}
	if r.Err != nil {
		m.Error = r.Err.Error()
	}
	for _, b := range r.Branches {
		mb := ManifestBranch{Stage: b.Stage, Branch: b.Branch, OK: b.OK(), Outputs: b.Outputs}
		if b.Err != nil {
			mb.Error = b.Err.Error()
		}
		m.Branches = append(m.Branches, mb)
	}
	return m
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &m, nil
}
