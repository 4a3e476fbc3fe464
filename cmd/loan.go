package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/credit-sentinel/pkg/ingest"
	"github.com/user/credit-sentinel/pkg/logging"
	"github.com/user/credit-sentinel/pkg/monitor"
)

var loanCmd = &cobra.Command{
	Use:   "loan",
	Short: "Track covenants and compliance reports per loan",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if cfg, err := loadConfig(); err == nil && cfg.Store.Backend != "sqlite" {
			logging.Log.Warn("Store backend is not sqlite; loan data will not persist between commands")
		}
		return nil
	},
}

var loanIngestCmd = &cobra.Command{
	Use:   "ingest <loan-id> <agreement>",
	Short: "Extract covenants from an agreement and store them for a loan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := ingest.LoadDocumentText(args[1])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		defs, err := a.service.IngestAgreement(cmd.Context(), args[0], text)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(defs)
		}
		printCovenants(defs)
		return nil
	},
}

var loanAnalyzeCmd = &cobra.Command{
	Use:   "analyze <loan-id> <financials> | analyze --batch <loan-id>=<financials>...",
	Short: "Evaluate a loan's covenants against a CSV or XLSX financial statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, _ := cmd.Flags().GetBool("batch")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if !batch {
			if len(args) != 2 {
				return fmt.Errorf("expected <loan-id> <financials>, got %d argument(s)", len(args))
			}
			snapshot, err := ingest.LoadSnapshotFile(args[1])
			if err != nil {
				return err
			}
			report, err := a.service.Analyze(cmd.Context(), args[0], snapshot)
			if err != nil {
				return err
			}
			return printReport(report)
		}

		jobs, err := batchJobs(args)
		if err != nil {
			return err
		}
		results, err := a.service.AnalyzeBatch(cmd.Context(), jobs)
		if err != nil {
			return err
		}
		if jsonOutput {
			type batchLine struct {
				LoanID string          `json:"loan_id"`
				Report *monitor.Report `json:"report,omitempty"`
				Error  string          `json:"error,omitempty"`
			}
			out := make([]batchLine, len(results))
			for i, r := range results {
				out[i].LoanID = r.LoanID
				if r.Err != nil {
					out[i].Error = r.Err.Error()
				} else {
					out[i].Report = &results[i].Report
				}
			}
			return printJSON(out)
		}
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%-20s ERROR %v\n", r.LoanID, r.Err)
				continue
			}
			fmt.Printf("%-20s %-9s report %s\n", r.LoanID, r.Report.Worst(), r.Report.ID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d loan(s) failed", failed, len(results))
		}
		return nil
	},
}

// batchJobs parses "<loan-id>=<file>" arguments. A bare file name uses its
// base name without extension as the loan id.
func batchJobs(args []string) ([]monitor.Job, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no financial files given")
	}
	jobs := make([]monitor.Job, 0, len(args))
	for _, arg := range args {
		loanID, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			loanID = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		}
		snapshot, err := ingest.LoadSnapshotFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		jobs = append(jobs, monitor.Job{LoanID: loanID, Snapshot: snapshot})
	}
	return jobs, nil
}

var loanCovenantsCmd = &cobra.Command{
	Use:   "covenants <loan-id>",
	Short: "List the stored covenants of a loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		defs, err := a.service.Covenants(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(defs)
		}
		printCovenants(defs)
		return nil
	},
}

var loanReportCmd = &cobra.Command{
	Use:   "report <loan-id>",
	Short: "Show the latest compliance report of a loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.service.LatestReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printReport(report)
	},
}

var loanDiffCmd = &cobra.Command{
	Use:   "diff <loan-id>",
	Short: "Compare the two latest reports of a loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		diff, err := a.service.Diff(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(diff)
		}
		fmt.Printf("Covenant changes for loan %s:\n", args[0])
		fmt.Println("--------------------------------------------------")
		fmt.Print(diff.Text())
		return nil
	},
}

func printReport(r monitor.Report) error {
	if jsonOutput {
		return printJSON(r)
	}
	fmt.Print(r.Text())
	return nil
}

func init() {
	loanAnalyzeCmd.Flags().Bool("batch", false, "Analyse several loans given as <loan-id>=<file> arguments")

	loanCmd.AddCommand(loanIngestCmd)
	loanCmd.AddCommand(loanAnalyzeCmd)
	loanCmd.AddCommand(loanCovenantsCmd)
	loanCmd.AddCommand(loanReportCmd)
	loanCmd.AddCommand(loanDiffCmd)
	rootCmd.AddCommand(loanCmd)
}
