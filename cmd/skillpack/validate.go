package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/jingkaihe/skillpack/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	Watch    bool
	Debounce time.Duration
}

// NewValidateConfig creates a new ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{
		Debounce: skills.DefaultDebounce,
	}
}

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate SKILL.md metadata",
	Long: `Validate every skill found under dir (default "."). A directory containing
SKILL.md is validated on its own; otherwise all skills below it are.

With --watch the skill is re-validated whenever its SKILL.md changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getValidateConfigFromFlags(cmd)

		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		if config.Watch {
			return watchSkill(cmd.Context(), root, config)
		}

		results, err := skills.ValidateAll(root)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return &skills.MissingFileError{Path: filepath.Join(root, skills.FileName)}
		}

		if len(results) == 1 && results[0].Err != nil {
			return results[0].Err
		}

		failed := 0
		for _, r := range results {
			if !reportValidation(r.Dir, r.Descriptor, r.Err) {
				failed++
			}
		}
		if failed > 0 {
			return errors.Wrapf(errValidationFailed, "%d of %d skills", failed, len(results))
		}
		return nil
	},
}

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().BoolP("watch", "w", defaults.Watch, "Re-validate whenever SKILL.md changes")
	validateCmd.Flags().Duration("debounce", defaults.Debounce, "How long to wait for writes to settle in watch mode")
}

// getValidateConfigFromFlags extracts validate configuration from command flags
func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()

	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}

	return config
}

// reportValidation prints one result and reports whether it passed.
func reportValidation(dir string, d *skills.Descriptor, err error) bool {
	if err != nil {
		presenter.Error(errors.Cause(err), kindOf(err))
		return false
	}

	msg := fmt.Sprintf("%s v%s (%s)", d.Name, d.Version, dir)
	if d.VersionSynthesized {
		msg += ", no version set"
	}
	presenter.Success(msg)
	return true
}

func watchSkill(ctx context.Context, dir string, config *ValidateConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	presenter.Info(fmt.Sprintf("Watching %s, press Ctrl+C to stop", filepath.Join(dir, skills.FileName)))
	return skills.Watch(ctx, dir, config.Debounce, func(d *skills.Descriptor, err error) {
		reportValidation(dir, d, err)
	})
}
