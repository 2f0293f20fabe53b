package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"buildweaver/internal/actiongraph"
	"buildweaver/internal/codec"
	"buildweaver/internal/event"
)

// ReportVersion is bumped whenever Report changes shape.
const ReportVersion = 1

// Report is the result of one analyze run. It contains no run-specific
// identifiers, so identical inputs produce identical reports.
type Report struct {
	Version   int                   `json:"version" cbor:"version"`
	HasErrors bool                  `json:"has_errors" cbor:"has_errors"`
	Targets   []TargetReport        `json:"targets" cbor:"targets"`
	Events    []event.Event         `json:"events" cbor:"events"`
	Graph     *actiongraph.Document `json:"graph,omitempty" cbor:"graph,omitempty"`
}

// TargetReport summarizes one analyzed target.
type TargetReport struct {
	Label         string   `json:"label" cbor:"label"`
	Configuration string   `json:"configuration" cbor:"configuration"`
	Actions       []string `json:"actions" cbor:"actions"`
	Orphans       []string `json:"orphans,omitempty" cbor:"orphans,omitempty"`
	HasErrors     bool     `json:"has_errors" cbor:"has_errors"`
}

// Encode serializes r in format.
func (r *Report) Encode(format ReportFormat) ([]byte, error) {
	switch format {
	case ReportCBOR:
		return codec.Marshal(r)
	case ReportJSON, "":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func writeReport(cfg ReportConfig, r *Report) error {
	data, err := r.Encode(cfg.Format)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := writeFileAtomic(cfg.Path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
