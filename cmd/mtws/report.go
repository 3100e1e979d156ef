package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/extractor"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/output"
	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/snapshot"
)

var reportFlags struct {
	snapshotDir string
	input       string
	format      string
	outputPath  string
	query       string
	history     int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a report from persisted metrics snapshots",
	Long: `Read a metrics snapshot written by 'mtws serve --snapshot-dir' and
render it as text, JSON, or a standalone HTML page. Without --input the
newest snapshot in the directory is used. --query extracts a single value
by JSON path instead of a full report.`,
	Example: `  # Text report from the latest snapshot
  mtws report --snapshot-dir ./snapshots

  # HTML report with the total-requests trend across older snapshots
  mtws report --snapshot-dir ./snapshots --format html -o report.html

  # One value, for scripting
  mtws report --snapshot-dir ./snapshots --query total_requests`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFlags.snapshotDir, "snapshot-dir", "snapshots", "Directory holding metrics snapshots")
	reportCmd.Flags().StringVar(&reportFlags.input, "input", "", "Report on this snapshot file instead of the newest one")
	reportCmd.Flags().StringVar(&reportFlags.format, "format", "text", "Report format: text, json, or html")
	reportCmd.Flags().StringVarP(&reportFlags.outputPath, "output", "o", "", "Write the report to this path instead of stdout")
	reportCmd.Flags().StringVar(&reportFlags.query, "query", "", "Extract one value by JSON path (e.g. p95_ms or status_codes.200)")
	reportCmd.Flags().IntVar(&reportFlags.history, "history", 50, "Snapshots to include in the HTML trend section")
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, _ []string) error {
	var (
		payload api.Payload
		err     error
	)
	if reportFlags.input != "" {
		payload, err = snapshot.LoadFile(reportFlags.input)
	} else {
		payload, err = snapshot.LoadLatest(reportFlags.snapshotDir)
	}
	if err != nil {
		return err
	}

	if reportFlags.query != "" {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		value, err := extractor.Query(data, reportFlags.query)
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	}

	out := io.Writer(os.Stdout)
	if reportFlags.outputPath != "" {
		f, err := os.Create(reportFlags.outputPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch strings.ToLower(strings.TrimSpace(reportFlags.format)) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "html":
		history, err := snapshot.History(reportFlags.snapshotDir, reportFlags.history)
		if err != nil {
			// A single-file report can still render without the trend.
			history = nil
		}
		return output.GenerateSnapshotHTML(out, payload, history)
	case "", "text":
		output.PrintSnapshotReport(out, payload)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or html", reportFlags.format)
	}
}
