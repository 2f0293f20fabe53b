package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitAnalysisFailure   = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// ReportFormat selects the report encoding.
type ReportFormat string

const (
	ReportJSON ReportFormat = "json"
	ReportCBOR ReportFormat = "cbor"
)

type ReportConfig struct {
	Enabled bool
	Path    string
	Format  ReportFormat
}

// Flags are the raw analyze flags as typed by the user.
type Flags struct {
	WorkDir      string
	Build        string
	Report       string
	ReportFormat string
	Config       string
}

// Invocation is the canonicalized description of one analyze run.
//
// All relative paths are resolved against WorkDir, which must be absolute, so
// the result never depends on the process working directory.
type Invocation struct {
	WorkDir    string
	BuildPath  string
	ConfigPath string
	Report     ReportConfig

	OriginalBuild  string
	OriginalReport string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// NewInvocation validates and canonicalizes f.
func NewInvocation(f Flags) (Invocation, error) {
	if strings.TrimSpace(f.WorkDir) == "" {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	workDir := filepath.Clean(f.WorkDir)
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", f.WorkDir)
	}
	if strings.TrimSpace(f.Build) == "" {
		return Invocation{}, invalidInvocationf("--build is required")
	}

	buildPath, err := resolveUnderWorkDir(workDir, f.Build)
	if err != nil {
		return Invocation{}, err
	}
	inv := Invocation{
		WorkDir:        workDir,
		BuildPath:      buildPath,
		OriginalBuild:  f.Build,
		OriginalReport: f.Report,
	}

	if strings.TrimSpace(f.Config) != "" {
		if inv.ConfigPath, err = resolveUnderWorkDir(workDir, f.Config); err != nil {
			return Invocation{}, err
		}
	}

	if strings.TrimSpace(f.Report) != "" {
		reportPath, err := resolveUnderWorkDir(workDir, f.Report)
		if err != nil {
			return Invocation{}, err
		}
		format, err := parseReportFormat(f.ReportFormat, reportPath)
		if err != nil {
			return Invocation{}, err
		}
		inv.Report = ReportConfig{Enabled: true, Path: reportPath, Format: format}
	} else if f.ReportFormat != "" {
		return Invocation{}, invalidInvocationf("--report-format requires --report")
	}

	return inv, nil
}

// parseReportFormat takes the explicit format, or infers it from the report
// file extension.
func parseReportFormat(raw, reportPath string) (ReportFormat, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	if n == "" {
		if strings.EqualFold(filepath.Ext(reportPath), ".cbor") {
			return ReportCBOR, nil
		}
		return ReportJSON, nil
	}
	switch ReportFormat(n) {
	case ReportJSON, ReportCBOR:
		return ReportFormat(n), nil
	default:
		return "", invalidInvocationf("invalid --report-format %q (expected json|cbor)", raw)
	}
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts the semantic exit code from err. Errors that are not
// invocation errors map to ExitInternalError.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
