package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"petpipe/internal/models"
	"petpipe/pkg/config"
	"petpipe/pkg/logging"
	"petpipe/pkg/pipeline"
)

var exitCode = pipeline.ExitOK

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "petpipe",
		Short: "SUVR, partial volume correction and surface mapping of PET data",
		Long: `petpipe normalizes a coregistered PET volume by three reference regions
(brainstem, cerebellar gray matter, composite), applies partial volume
correction (GMprob, MG) and maps the corrected volumes onto the native and
fsLR-32k cortical surfaces of one subject/session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPipeline,
	}

	flags := cmd.Flags()
	flags.String("sub", "", "Subject id, with or without the sub- prefix (required)")
	flags.String("ses", "", "Session id, with or without the ses- prefix (required)")
	flags.String("out", "", "Output derivatives directory holding the coregistered PET (required)")
	flags.String("anat", "", "Structural processing derivatives directory (required)")
	flags.String("surf", "", "Surface processing derivatives directory (required)")
	flags.Int("threads", 6, "Threads used by the external tools")
	flags.String("tmpDir", "", "Parent directory of the working directory")
	flags.Bool("nocleanup", false, "Keep the working directory")
	flags.Bool("quiet", false, "Only report warnings and errors")
	flags.Bool("verbose", false, "Log every tool invocation")
	flags.Bool("snapshots", false, "Write QC slice images of the SUVR volumes")
	flags.String("config", "", "YAML configuration file")

	cmd.AddCommand(&cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// settings layers flags over PETPIPE_* environment variables.
func settings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PETPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Explicit flags and environment variables override the file
	if v.IsSet("threads") {
		cfg.Processing.Threads = v.GetInt("threads")
	}
	if v.IsSet("tmpDir") {
		cfg.Workdir.TmpDir = v.GetString("tmpDir")
	}
	if v.GetBool("nocleanup") {
		cfg.Output.Cleanup = false
	}
	if v.GetBool("quiet") {
		cfg.Output.Quiet = true
	}
	if v.GetBool("verbose") {
		cfg.Output.Verbose = true
	}
	if v.GetBool("snapshots") {
		cfg.Output.Snapshots = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	exitCode = pipeline.ExitFatal

	v, err := settings(cmd)
	if err != nil {
		return err
	}

	var missing []string
	for _, name := range []string{"sub", "ses", "out", "anat", "surf"} {
		if v.GetString(name) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		cmd.Usage()
		return fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	logging.Configure(cfg.Output.Quiet, cfg.Output.Verbose)

	params := &pipeline.Params{
		Subject:   v.GetString("sub"),
		Session:   v.GetString("ses"),
		OutputDir: v.GetString("out"),
		AnatDir:   v.GetString("anat"),
		SurfDir:   v.GetString("surf"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Output.Quiet {
		fmt.Println("================================")
		fmt.Println("PETPIPE: SUVR, PVC AND SURFACE MAPPING")
		fmt.Println("================================")
	}

	log := logging.ForSubject(models.NewIdentity(params.Subject, params.Session))
	driver := pipeline.NewDriver(params, cfg, pipeline.NewTools(cfg, log))
	report, err := driver.Run(ctx)
	exitCode = report.ExitCode()
	if err != nil {
		return err
	}

	if !cfg.Output.Quiet {
		fmt.Printf("\n%s\n", report.Summary())
		for _, b := range report.Failures() {
			fmt.Printf("- %s %s: %v\n", b.Stage, b.Branch, b.Err)
		}
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Logger().Error(err)
		if exitCode == pipeline.ExitOK {
			exitCode = pipeline.ExitFatal
		}
	}
	os.Exit(exitCode)
}
