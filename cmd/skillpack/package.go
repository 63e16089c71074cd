package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jingkaihe/skillpack/pkg/archive"
	"github.com/jingkaihe/skillpack/pkg/packager"
	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/jingkaihe/skillpack/pkg/semver"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// PackageConfig holds configuration for the package command
type PackageConfig struct {
	OutputDir      string
	TemplatesDir   string
	Bump           string
	Strict         bool
	Excludes       []string
	WarnSize       int64
	Yes            bool
	AllowDowngrade bool
	Overwrite      bool
	DryRun         bool
	Output         outputFormat
}

// NewPackageConfig creates a new PackageConfig with default values
func NewPackageConfig() *PackageConfig {
	return &PackageConfig{
		Bump:     string(semver.ActionKeep),
		WarnSize: packager.DefaultWarnSize,
		Output:   formatText,
	}
}

// Validate validates the PackageConfig and returns an error if invalid
func (c *PackageConfig) Validate() error {
	if c.OutputDir == "" {
		return &archive.OutputPathError{
			Path: c.OutputDir,
			Err:  errors.New("set --output-dir or output_dir in skillpack.yaml"),
		}
	}
	return nil
}

var packageCmd = &cobra.Command{
	Use:   "package [skill-dir]",
	Short: "Validate, version and package a skill",
	Long: `Validate the skill's SKILL.md, resolve the next version, render the download
and user guides, and write {name}-v{version}.zip with its SHA-256 into the
output directory. SKILL.md is updated with the new version.

Nothing is written unless every stage succeeds.`,
	Example: `  skillpack package ./pdf-tools --bump minor --output-dir dist
  skillpack package . --bump 2.0.0 --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getPackageConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return err
		}

		action, err := semver.ParseAction(config.Bump)
		if err != nil {
			return err
		}

		skillDir := "."
		if len(args) > 0 {
			skillDir = args[0]
		}

		if config.Output.structured() {
			presenter.SetQuiet(true)
		}

		p, err := packager.New(
			packager.WithTemplatesDir(config.TemplatesDir),
			packager.WithStrictTemplates(config.Strict),
			packager.WithExcludes(config.Excludes...),
			packager.WithWarnSize(config.WarnSize),
			packager.WithRegressionHook(regressionHook(config)),
			packager.WithOverwriteHook(overwriteHook(config)),
		)
		if err != nil {
			return err
		}

		artifact, err := p.Run(cmd.Context(), packager.Request{
			SkillDir:  skillDir,
			OutputDir: config.OutputDir,
			Action:    action,
			DryRun:    config.DryRun,
		})
		if err != nil {
			return err
		}

		for _, w := range artifact.Warnings {
			presenter.Warning(w)
		}

		if config.Output.structured() {
			return config.Output.write(cmd.OutOrStdout(), artifact)
		}
		printArtifact(artifact)
		return nil
	},
}

func init() {
	defaults := NewPackageConfig()
	packageCmd.Flags().StringP("output-dir", "o", "", "Directory that receives the archive and generated docs")
	packageCmd.Flags().String("templates-dir", "", "Directory containing download_template.md and doc_template.md")
	packageCmd.Flags().StringP("bump", "b", defaults.Bump, "Version change: keep, patch, minor, major or an explicit X.Y.Z")
	packageCmd.Flags().Bool("strict", defaults.Strict, "Fail when a template contains an unknown {{PLACEHOLDER}}")
	packageCmd.Flags().StringSlice("exclude", nil, "Extra exclusion patterns (doublestar syntax), on top of the defaults")
	packageCmd.Flags().Int64("warn-size", defaults.WarnSize, "Warn when the archive is larger than this many bytes (0 disables)")
	packageCmd.Flags().BoolP("yes", "y", false, "Accept version regressions and overwrite existing archives without asking")
	packageCmd.Flags().Bool("allow-downgrade", false, "Accept a version lower than the current one")
	packageCmd.Flags().Bool("overwrite", false, "Replace an existing archive of the same version")
	packageCmd.Flags().Bool("dry-run", false, "Run every stage and show the result without writing anything")
	packageCmd.Flags().Var(&defaults.Output, "output", "Output format (text, json, yaml)")

	viper.BindPFlag("output_dir", packageCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("templates_dir", packageCmd.Flags().Lookup("templates-dir"))
	viper.BindPFlag("strict_templates", packageCmd.Flags().Lookup("strict"))
	viper.BindPFlag("exclude", packageCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("warn_size_bytes", packageCmd.Flags().Lookup("warn-size"))
}

// getPackageConfigFromFlags extracts package configuration from command flags and config
func getPackageConfigFromFlags(cmd *cobra.Command) *PackageConfig {
	config := NewPackageConfig()

	config.OutputDir = viper.GetString("output_dir")
	config.TemplatesDir = viper.GetString("templates_dir")
	config.Strict = viper.GetBool("strict_templates")
	config.Excludes = viper.GetStringSlice("exclude")
	config.WarnSize = viper.GetInt64("warn_size_bytes")

	if bump, err := cmd.Flags().GetString("bump"); err == nil {
		config.Bump = bump
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if allow, err := cmd.Flags().GetBool("allow-downgrade"); err == nil {
		config.AllowDowngrade = allow
	}
	if overwrite, err := cmd.Flags().GetBool("overwrite"); err == nil {
		config.Overwrite = overwrite
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		config.Output = outputFormat(f.Value.String())
	}

	return config
}

func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func regressionHook(config *PackageConfig) packager.RegressionHook {
	return func(w *semver.VersionRegressionWarning) bool {
		if config.Yes || config.AllowDowngrade {
			return true
		}
		if !interactive() {
			return false
		}
		presenter.Warning(w.Error())
		return presenter.Confirm(fmt.Sprintf("Package as %s anyway?", w.Requested))
	}
}

func overwriteHook(config *PackageConfig) packager.OverwriteHook {
	return func(d *archive.DuplicateVersionError) bool {
		if config.Yes || config.Overwrite {
			return true
		}
		if !interactive() {
			return false
		}
		presenter.Warning(d.Error())
		return presenter.Confirm("Overwrite it?")
	}
}

func printArtifact(a *packager.Artifact) {
	if a.DryRun {
		presenter.Section(fmt.Sprintf("Dry run: %s v%s -> v%s", a.Name, a.PreviousVersion, a.Version))
		if a.Diff != "" {
			presenter.Info(a.Diff)
		}
		presenter.Info(fmt.Sprintf("Would write %s (%d files, %s)", a.ArchivePath, a.FileCount, humanize.IBytes(uint64(a.SizeBytes))))
		for _, doc := range a.GeneratedDocs {
			presenter.Info("Would write " + doc.Path)
		}
		presenter.Info("SHA-256: " + a.SHA256)
		return
	}

	presenter.Success(fmt.Sprintf("Packaged %s v%s", a.Name, a.Version))
	presenter.Info("Archive: " + a.ArchivePath)
	presenter.Info(fmt.Sprintf("Size:    %s (%d files, %s uncompressed)", humanize.IBytes(uint64(a.SizeBytes)), a.FileCount, humanize.IBytes(uint64(a.TotalBytes))))
	presenter.Info("SHA-256: " + a.SHA256)
	for _, doc := range a.GeneratedDocs {
		presenter.Info("Doc:     " + doc.Path)
	}
	if a.DescriptorUpdated {
		presenter.Info(fmt.Sprintf("Updated %s: %s -> %s", a.DescriptorPath, a.PreviousVersion, a.Version))
	}
}
