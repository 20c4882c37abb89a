// Command measures runs the SRO measure pipeline once over the extracted
// measure files and writes the rate tables, deprivation tables and top
// code tables to the configured sinks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"sroanalysis/internal/app"
	"sroanalysis/internal/config"
	"sroanalysis/internal/infrastructure"
	"sroanalysis/internal/pipeline"
	"sroanalysis/pkg/contracts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "measures: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("measures", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file (defaults to SRO_CONFIG_FILE or config.yaml lookup)")
	baseDir := fs.String("base", "", "base directory relative paths are resolved against (defaults to the working directory)")
	measureIDs := fs.String("measures", "", "comma-separated measure IDs to run (defaults to every configured measure)")
	reportPath := fs.String("report", "", "write the JSON run report to this file, or - for stdout")
	list := fs.Bool("list", false, "list the configured measures and exit")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	paths, err := cfg.ResolvePaths(*baseDir)
	if err != nil {
		return err
	}
	cfg.Logging.FilePath = paths.Resolve(cfg.Logging.FilePath)

	logger, logFile, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	a, err := app.New(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownGrace)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("Failed to close application", slog.String("error", err.Error()))
		}
	}()

	if *list {
		return listMeasures(stdout, a)
	}

	report, runErr := a.Runner.Run(ctx, splitIDs(*measureIDs)...)
	if report != nil {
		printSummary(stdout, report)
		if err := writeReport(stdout, *reportPath, report); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func listMeasures(w io.Writer, a *app.Application) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMERATOR\tDENOMINATOR\tGROUP BY\tSUPPRESSION\tINPUT")
	for _, m := range a.Runner.Measures() {
		input := a.Paths.MeasurePath(m.ID)
		if !config.FileExists(input) {
			input += " (missing)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			m.ID, m.Numerator, m.Denominator, strings.Join(m.GroupBy, ","), m.SmallNumberSuppression, input)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, report *pipeline.Report) {
	fmt.Fprintf(w, "run %s %s in %s\n", report.RunID, report.Status, report.Duration)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range report.Measures {
		detail := m.Error
		if detail == "" && m.Redaction != nil {
			detail = fmt.Sprintf("%d cells redacted", m.Redaction.CellsRedacted())
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d rows\t%s\n", m.ID, m.Status, m.RowsWritten, detail)
	}
	_ = tw.Flush()
}

func writeReport(stdout io.Writer, path string, report *pipeline.Report) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
