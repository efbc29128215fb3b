package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/report"
)

func collectCmd() *cobra.Command {
	var (
		competitors []string
		num         int
		format      string
		noReport    bool
		output      string
	)

	cmd := &cobra.Command{
		Use:   "collect [query]",
		Short: "Run one collection and print the report",
		Long: `Search for the query, profile the given competitors and print a
report. Fresh cached artifacts are reused; everything else is fetched and
analyzed. With --no-report only the collection itself is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "json", "text", "html", "csv":
			default:
				return fmt.Errorf("unknown format %q (want json, text, html or csv)", format)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("failed to close store", "err", err)
				}
			}()

			res, err := a.pipeline.Collect(ctx, model.CollectionRequest{
				Query:       args[0],
				NumResults:  num,
				Competitors: competitors,
			})
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			if format == "csv" {
				return report.WriteCSV(w, res)
			}
			if noReport {
				if format != "json" {
					return fmt.Errorf("--no-report supports json and csv output only")
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			rep := a.assembler.Assemble(ctx, res)
			switch format {
			case "text":
				return report.WriteText(w, rep)
			case "html":
				return report.WriteHTML(w, rep)
			default:
				return report.WriteJSON(w, rep)
			}
		},
	}

	cmd.Flags().StringSliceVar(&competitors, "competitors", nil, "Competitor domains or names (comma separated or repeated)")
	cmd.Flags().IntVarP(&num, "num", "n", model.DefaultNumResults, "Number of search results")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, text, html or csv")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "Print the collection without SWOT or comparison")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
