package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/ingest"
	"github.com/user/credit-sentinel/pkg/logging"
)

var jsonOutput bool

var extractCmd = &cobra.Command{
	Use:   "extract <agreement>",
	Short: "Extract covenants from a loan agreement (PDF or text)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := ingest.LoadDocumentText(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		defs := a.extractor.Extract(cmd.Context(), text)
		if jsonOutput {
			return printJSON(defs)
		}
		printCovenants(defs)
		return nil
	},
}

var ratiosCmd = &cobra.Command{
	Use:   "ratios <financials>",
	Short: "Compute financial ratios from the latest period of a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := ingest.LoadSnapshotFile(args[0])
		if err != nil {
			return err
		}
		logging.Infof("Loaded %d figure(s) from %s", len(snapshot), args[0])
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ratios, err := engine.NewCalculatorFromConfig(cfg, nil).Calculate(snapshot)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ratios)
		}
		for _, name := range []string{covenant.DebtToEBITDA, covenant.InterestCoverage, covenant.CurrentRatio} {
			if v, ok := ratios[name]; ok {
				fmt.Printf("%-20s %.2f\n", name, v)
			}
		}
		return nil
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Classify a single ratio value against a covenant threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		operator, _ := cmd.Flags().GetString("operator")
		value, _ := cmd.Flags().GetFloat64("value")

		def := covenant.Definition{
			Name:      name,
			Threshold: threshold,
			Operator:  covenant.Operator(operator),
			Category:  covenant.CategoryFinancial,
		}
		if err := covenant.Validate(def); err != nil {
			return err
		}

		res := engine.Evaluate(def, value)
		if jsonOutput {
			return printJSON(struct {
				covenant.Result
				Explanation string `json:"explanation"`
			}{res, engine.Explain(def, res)})
		}
		fmt.Printf("[%s] %s\n", res.Status, engine.Explain(def, res))
		return nil
	},
}

func printCovenants(defs []covenant.Definition) {
	if len(defs) == 0 {
		fmt.Println("No covenants found.")
		return
	}
	fmt.Printf("Found %d covenant(s):\n", len(defs))
	for _, d := range defs {
		fmt.Printf("  %-20s %s %s (%s)\n", d.Name, d.Operator, formatThreshold(d.Threshold), d.Category)
		if d.SourceClause != "" {
			fmt.Printf("    %q\n", d.SourceClause)
		}
	}
}

func formatThreshold(v float64) string {
	return fmt.Sprintf("%g", v)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	evaluateCmd.Flags().StringP("name", "n", covenant.DebtToEBITDA, "Covenant name")
	evaluateCmd.Flags().Float64P("threshold", "t", 0, "Covenant threshold")
	evaluateCmd.Flags().StringP("operator", "o", string(covenant.OpLessEqual), "Operator (<=, >=, <, >, =)")
	evaluateCmd.Flags().Float64P("value", "v", 0, "Current ratio value")
	_ = evaluateCmd.MarkFlagRequired("threshold")
	_ = evaluateCmd.MarkFlagRequired("value")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(ratiosCmd)
	rootCmd.AddCommand(evaluateCmd)
}
