package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/seuros/kohort/internal/etl"
	"github.com/seuros/kohort/internal/ingest"
	"github.com/seuros/kohort/internal/records"
)

var etlCmd = &cobra.Command{
	Use:   "etl [FILE...]",
	Short: "Upload customer batch files",
	Long: `Clean, validate and deduplicate customer batches, then append the
accepted customers to the store.

Files may be JSON (an array of records, or {"records": [...]}) or CSV with a
header row. Without arguments the configured batch file is uploaded.

Examples:
  kohort etl
  kohort etl data/new_customers.json leads.csv
  kohort etl leads.csv --dry-run --format json`,
	RunE: runETL,
}

// fileOutcome is one line of etl output.
type fileOutcome struct {
	File       string          `json:"file"`
	UploadID   string          `json:"upload_id,omitempty"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Accepted   int             `json:"accepted"`
	Duplicates int             `json:"duplicates"`
	Invalid    int             `json:"invalid"`
	Summary    string          `json:"summary"`
	Rejections []etl.Rejection `json:"rejections,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func runETL(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (use text or json)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		files = []string{batchPath(cfg)}
	}

	env, err := openEnvironment(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	uploads := env.uploads()
	bar := newProgress(len(files), os.Stdout)

	outcomes := make([]fileOutcome, 0, len(files))
	failed := 0
	for _, path := range files {
		outcome := processFile(cmd.Context(), uploads, path, dryRun)
		if outcome.Error != "" {
			failed++
		}
		outcomes = append(outcomes, outcome)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if !dryRun && len(outcomes) > failed {
		if err := env.persist(); err != nil {
			return err
		}
	}

	if format == "json" {
		data, err := json.MarshalIndent(outcomes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printOutcomes(os.Stdout, outcomes)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func processFile(ctx context.Context, uploads *ingest.Service, path string, dryRun bool) fileOutcome {
	src := records.NewFileBatch(path)
	outcome := fileOutcome{File: filepath.Base(path), DryRun: dryRun}

	var result etl.Result
	if dryRun {
		preview, err := uploads.Preview(ctx, src)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		result = preview
	} else {
		report, err := uploads.Upload(ctx, src)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		outcome.UploadID = report.Upload.ID
		result = report.Result
	}

	outcome.Accepted = len(result.Accepted)
	outcome.Duplicates = result.Duplicates
	outcome.Invalid = result.Invalid
	outcome.Summary = result.Summary()
	outcome.Rejections = result.Rejections
	return outcome
}

func printOutcomes(w io.Writer, outcomes []fileOutcome) {
	for _, o := range outcomes {
		prefix := ""
		if o.DryRun {
			prefix = "(dry run) "
		}
		if o.Error != "" {
			_, _ = fmt.Fprintf(w, "✗ %s: %s\n", o.File, o.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "✓ %s: %s%s\n", o.File, prefix, o.Summary)
		for _, r := range o.Rejections {
			_, _ = fmt.Fprintf(w, "    #%d %s: %s", r.Index, r.Reason, r.Detail)
			if r.Email != "" {
				_, _ = fmt.Fprintf(w, " (%s)", r.Email)
			}
			_, _ = fmt.Fprintln(w)
		}
	}
}

// newProgress returns a bar when out is a terminal and there is more than
// one file.
func newProgress(total int, out *os.File) *progressbar.ProgressBar {
	if total < 2 || !term.IsTerminal(int(out.Fd())) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func init() {
	etlCmd.Flags().Bool("dry-run", false, "Validate and deduplicate without storing anything")
	etlCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	RootCmd.AddCommand(etlCmd)
}
