package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/app"
	"github.com/JakeFAU/funding-crawler/internal/pipeline"
)

// newCrawlCmd creates and configures the 'crawl' subcommand, which performs a
// single run and exits.
func newCrawlCmd() *cobra.Command {
	var (
		sources []string
		dryRun  bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl over the configured sources",
		Long: `Discovers candidate articles on each configured source, classifies and
extracts funding events, and persists the new ones. With --dry-run nothing is
written to the database or published.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), rt.cfg, app.Options{DryRun: dryRun}, rt.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer a.Close()

			selected, err := a.Sources(sources)
			if err != nil {
				return err
			}
			report, runErr := a.Runner().Run(cmd.Context(), selected)
			if report.RunID != "" {
				if asJSON {
					if err := writeReportJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					writeSummary(cmd.OutOrStdout(), report)
				}
			}
			if runErr != nil {
				return fmt.Errorf("crawl failed: %w", runErr)
			}
			rt.logger.Info("crawl command finished", zap.String("run_id", report.RunID))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "restrict the run to these source names (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep records in memory and skip publishing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run report as JSON")
	return cmd
}

func writeReportJSON(w io.Writer, report pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeSummary(w io.Writer, report pipeline.Report) {
	sources := [][]string{{"SOURCE", "CANDIDATES", "DRAFTS", "RECORDS", "SKIPPED", "FAILURES"}}
	for _, s := range report.Sources {
		sources = append(sources, []string{
			s.Name, strconv.Itoa(s.Candidates), strconv.Itoa(s.Drafts),
			strconv.Itoa(s.Records), strconv.Itoa(s.Skipped), strconv.Itoa(len(s.Failures)),
		})
	}
	writeTable(w, sources)

	_, _ = fmt.Fprintf(w, "\nrun %s: %d offered, %d inserted, %d published\n",
		report.RunID, report.Offered, report.Inserted, report.Published)
	for _, s := range report.Sources {
		if s.DiscoveryError != "" {
			_, _ = fmt.Fprintf(w, "discovery failed for %s: %s\n", s.Name, s.DiscoveryError)
		}
	}
	if len(report.Records) > 0 {
		rows := [][]string{{"COMPANY", "AMOUNT", "CURRENCY", "ROUND", "DATE", "WEBSITE"}}
		for _, rec := range report.Records {
			rows = append(rows, []string{
				runewidth.Truncate(rec.CompanyName, maxCompanyWidth, "..."),
				strconv.FormatInt(rec.AmountRaised, 10), rec.Currency, rec.FundingRound, rec.RaisedDate, rec.WebsiteURL,
			})
		}
		_, _ = fmt.Fprintln(w)
		writeTable(w, rows)
	}
	if report.Location != "" {
		_, _ = fmt.Fprintf(w, "report written to %s\n", report.Location)
	}
}

const maxCompanyWidth = 32

// writeTable pads columns by display width so wide runes stay aligned.
func writeTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for i, cell := range row {
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)+2))
			}
		}
		_, _ = fmt.Fprintln(w, sb.String())
	}
}
