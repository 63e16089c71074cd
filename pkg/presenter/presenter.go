// Package presenter provides consistent CLI output functionality for user-facing messages,
// including success, error, warning, and informational output with color support and quiet mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Prompt(question string, options ...string) string
	Confirm(question string) bool
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	quiet       bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto lets fatih/color decide based on the terminal
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output regardless of terminal capabilities
	ColorAlways
	// ColorNever disables colored output regardless of terminal capabilities
	ColorNever
)

// ParseColorMode maps the `color` config value to a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always", "force":
		return ColorAlways, nil
	case "never", "off":
		return ColorNever, nil
	default:
		return ColorAuto, errors.Errorf("invalid color mode %q: expected auto, always or never", s)
	}
}

// New creates a new TerminalPresenter with default settings
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, ColorAuto)
}

// NewWithOptions creates a TerminalPresenter with custom settings
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	p := &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
	}
	p.SetColorMode(colorMode)
	return p
}

// SetColorMode configures the color package for the given mode
func (p *TerminalPresenter) SetColorMode(mode ColorMode) {
	p.colorMode = mode
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}
}

// SetOutput redirects regular and error output.
func (p *TerminalPresenter) SetOutput(output, errorOutput io.Writer) {
	p.output = output
	p.errorOutput = errorOutput
}

// SetInput replaces the reader prompts read answers from
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = bufio.NewReader(r)
}

// Error displays an error message to stderr
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}

	successColor := color.New(color.FgGreen, color.Bold)
	successColor.Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message on stderr so structured stdout stays clean
func (p *TerminalPresenter) Warning(message string) {
	warningColor := color.New(color.FgYellow, color.Bold)
	warningColor.Fprintf(p.errorOutput, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}

	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header with consistent formatting
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	headerColor := color.New(color.Bold)
	separator := strings.Repeat("-", len(title))

	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", separator)
}

// Prompt displays a prompt on stderr and reads one line of input
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	promptColor := color.New(color.FgCyan)

	if len(options) > 0 {
		promptColor.Fprintf(p.errorOutput, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		promptColor.Fprintf(p.errorOutput, "%s: ", question)
	}

	response, err := p.input.ReadString('\n')
	if err != nil && response == "" {
		return ""
	}

	return strings.TrimSpace(response)
}

// Confirm asks a yes/no question. Anything but y or yes counts as no.
func (p *TerminalPresenter) Confirm(question string) bool {
	switch strings.ToLower(p.Prompt(question, "y", "N")) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}

	separatorColor := color.New(color.Faint)
	separatorColor.Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

// Global presenter instance for convenience
var defaultPresenter = New()

// Default returns the shared presenter instance.
func Default() *TerminalPresenter {
	return defaultPresenter
}

// Error displays an error message using the default presenter instance.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success displays a success message using the default presenter instance.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning displays a warning message using the default presenter instance.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter instance.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section displays a section header using the default presenter instance.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Prompt displays a prompt and reads user input using the default presenter instance.
func Prompt(question string, options ...string) string {
	return defaultPresenter.Prompt(question, options...)
}

// Confirm asks a yes/no question using the default presenter instance.
func Confirm(question string) bool {
	return defaultPresenter.Confirm(question)
}

// Separator displays a visual separator using the default presenter instance.
func Separator() {
	defaultPresenter.Separator()
}

// SetQuiet enables or disables quiet mode for the default presenter instance.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether quiet mode is enabled for the default presenter instance.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
