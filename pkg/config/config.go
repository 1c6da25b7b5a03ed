// Package config provides configuration loading and management for petpipe.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"petpipe/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Threads is the thread count handed to the external numeric tools
		Threads int `yaml:"threads"`

		// ParallelBranches bounds how many surface branches run at once
		ParallelBranches int `yaml:"parallelBranches"`

		// WMThreshold is the white-matter probability at or above which a voxel
		// joins the composite reference region
		WMThreshold float64 `yaml:"wmThreshold"`

		// PSF is the point-spread-function FWHM in mm along x, y and z used by
		// the deconvolution PVC method
		PSF [3]float64 `yaml:"psf,flow"`

		// PVCMethods selects which PVC methods run ("GMprob", "MG")
		PVCMethods []string `yaml:"pvcMethods,flow"`

		// SmoothingKernels are the surface smoothing FWHMs in mm
		SmoothingKernels []float64 `yaml:"smoothingKernels,flow"`

		// ThicknessKernel is the FWHM used for the QC thickness map
		ThicknessKernel float64 `yaml:"thicknessKernel"`

		// MappingMethod is the volume-to-surface sampling method
		// ("trilinear" or "enclosing")
		MappingMethod string `yaml:"mappingMethod"`
	} `yaml:"processing"`

	// Label codes used to build the reference regions
	Labels struct {
		// Brainstem is the atlas code of the brainstem
		Brainstem int `yaml:"brainstem"`

		// CerebellarGM are the left and right cerebellar cortex codes
		CerebellarGM []int `yaml:"cerebellarGM,flow"`

		// SubcorticalExclude are the subcortical codes removed from the
		// composite region and from the gray-matter probability map
		SubcorticalExclude []int `yaml:"subcorticalExclude,flow"`
	} `yaml:"labels"`

	// External tool locations
	Tools struct {
		Workbench       string `yaml:"workbench"`
		PETPVC          string `yaml:"petpvc"`
		ApplyTransforms string `yaml:"applyTransforms"`

		// Wrapper is prepended to every tool invocation, e.g.
		// ["apptainer", "exec", "/images/petpipe.sif"]
		Wrapper []string `yaml:"wrapper,flow"`

		// TemplatesDir holds the fsLR-32k template spheres
		TemplatesDir string `yaml:"templatesDir"`
	} `yaml:"tools"`

	// Output parameters
	Output struct {
		// Root is the directory created under the output path
		Root string `yaml:"root"`

		// Cleanup removes the working directory at the end of a run
		Cleanup bool `yaml:"cleanup"`

		// Quiet only reports warnings and errors
		Quiet bool `yaml:"quiet"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Snapshots writes QC slice images of every SUVR volume
		Snapshots bool `yaml:"snapshots"`
	} `yaml:"output"`

	// Working directory parameters
	Workdir struct {
		// TmpDir is the parent of the per-run working directory; empty means
		// the system default
		TmpDir string `yaml:"tmpDir"`
	} `yaml:"workdir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Threads = 6
	cfg.Processing.ParallelBranches = 1
	cfg.Processing.WMThreshold = 0.5
	cfg.Processing.PSF = [3]float64{2.4, 2.4, 2.4}
	cfg.Processing.PVCMethods = []string{models.GMProb.String(), models.MG.String()}
	cfg.Processing.SmoothingKernels = []float64{10, 20}
	cfg.Processing.ThicknessKernel = 10
	cfg.Processing.MappingMethod = "trilinear"

	// FreeSurfer aseg codes
	cfg.Labels.Brainstem = 16
	cfg.Labels.CerebellarGM = []int{8, 47}
	cfg.Labels.SubcorticalExclude = []int{16}

	cfg.Tools.Workbench = "wb_command"
	cfg.Tools.PETPVC = "petpvc"
	cfg.Tools.ApplyTransforms = "antsApplyTransforms"
	cfg.Tools.TemplatesDir = "/opt/petpipe/surfaces"

	// Set default output parameters
	cfg.Output.Root = "petpipe"
	cfg.Output.Cleanup = true
	cfg.Output.Quiet = false
	cfg.Output.Verbose = false
	cfg.Output.Snapshots = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if c.Processing.Threads < 1 {
		return fmt.Errorf("processing.threads must be at least 1, got %d", c.Processing.Threads)
	}
	if c.Processing.ParallelBranches < 1 {
		return fmt.Errorf("processing.parallelBranches must be at least 1, got %d", c.Processing.ParallelBranches)
	}
	for i, w := range c.Processing.PSF {
		if w <= 0 {
			return fmt.Errorf("processing.psf[%d] must be positive, got %g", i, w)
		}
	}
	if _, err := c.Methods(); err != nil {
		return err
	}
	for _, k := range c.Processing.SmoothingKernels {
		if k <= 0 {
			return fmt.Errorf("processing.smoothingKernels must be positive, got %g", k)
		}
	}
	if c.Processing.ThicknessKernel <= 0 {
		return fmt.Errorf("processing.thicknessKernel must be positive, got %g", c.Processing.ThicknessKernel)
	}
	switch c.Processing.MappingMethod {
	case "trilinear", "enclosing":
	default:
		return fmt.Errorf("processing.mappingMethod must be trilinear or enclosing, got %q", c.Processing.MappingMethod)
	}
	if len(c.Labels.CerebellarGM) == 0 {
		return fmt.Errorf("labels.cerebellarGM must list at least one code")
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must not be empty")
	}
	return nil
}

// Methods returns the configured PVC methods in processing order.
func (c *Config) Methods() ([]models.Method, error) {
	seen := make(map[models.Method]bool)
	for _, name := range c.Processing.PVCMethods {
		m, err := models.ParseMethod(name)
		if err != nil {
			return nil, fmt.Errorf("processing.pvcMethods: %w", err)
		}
		seen[m] = true
	}
	var methods []models.Method
	for _, m := range models.Methods() {
		if seen[m] {
			methods = append(methods, m)
		}
	}
	return methods, nil
}
