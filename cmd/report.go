package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// mountResult is the final per-mount summary: the mount's identity plus one
// averaged bandwidth per access pattern. Invalid cells mean "no data" and
// render as N/A, never as a bare zero.
type mountResult struct {
	Mount     mountRecord `json:"mount"`
	SeqWrite  measurement `json:"seq_write"`
	SeqRead   measurement `json:"seq_read"`
	RandWrite measurement `json:"rand_write"`
	RandRead  measurement `json:"rand_read"`
}

// formatSpeed renders a bandwidth cell in MB/s.
func formatSpeed(m measurement) string {
	if !m.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", m.MBps)
}

// renderTable writes the fixed-width multi-mount summary.
func renderTable(w io.Writer, results []mountResult) {
	line := strings.Repeat("-", 106)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%-26s | %-22s | %-10s | %-10s | %-10s | %-10s\n",
		"Mount", "Model", "SeqW MB/s", "SeqR MB/s", "RandW MB/s", "RandR MB/s")
	fmt.Fprintln(w, line)
	for _, res := range results {
		fmt.Fprintf(w, "%-26s | %-22s | %-10s | %-10s | %-10s | %-10s\n",
			res.Mount.MountPath,
			res.Mount.Model,
			formatSpeed(res.SeqWrite),
			formatSpeed(res.SeqRead),
			formatSpeed(res.RandWrite),
			formatSpeed(res.RandRead))
	}
	fmt.Fprintln(w, line)
}

// renderLines writes the flat single-target form, one access pattern per line.
func renderLines(w io.Writer, res mountResult) {
	fmt.Fprintf(w, "Target: %s (device: %s, model: %s)\n",
		res.Mount.MountPath, res.Mount.Device, res.Mount.Model)
	rows := []struct {
		label string
		cell  measurement
	}{
		{"Sequential write", res.SeqWrite},
		{"Sequential read", res.SeqRead},
		{"Random write", res.RandWrite},
		{"Random read", res.RandRead},
	}
	for _, row := range rows {
		if formatSpeed(row.cell) == "N/A" {
			fmt.Fprintf(w, "  %-17s N/A\n", row.label+":")
			continue
		}
		fmt.Fprintf(w, "  %-17s %s MB/s\n", row.label+":", formatSpeed(row.cell))
	}
}

// exportResultsJSON writes the full result set as indented JSON for
// scripting, mirroring what the table shows.
func exportResultsJSON(results []mountResult, filePath string) error {
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling results to JSON")
	}
	if err := os.WriteFile(filePath, jsonData, 0644); err != nil {
		return errors.Wrapf(err, "writing JSON to %s", filePath)
	}
	return nil
}
