package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/picklr-io/anfctl/internal/ir"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the run ledger",
}

var ledgerShowYAML bool

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last run and the recorded state of each resource",
	RunE:  runLedgerShow,
}

func init() {
	ledgerShowCmd.Flags().BoolVar(&ledgerShowYAML, "yaml", false, "print the raw ledger document")
	ledgerCmd.AddCommand(ledgerShowCmd)
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	backend, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	ledger, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	if ledgerShowYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(ledger)
	}
	return printLedger(out, ledger, time.Now())
}

func printLedger(out io.Writer, ledger *ir.Ledger, now time.Time) error {
	if ledger.Serial == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(out, "Ledger: serial=%d lineage=%s\n", ledger.Serial, ledger.Lineage)
	if run := ledger.LastRun; run != nil {
		result := "succeeded"
		if !run.Succeeded {
			result = "failed: " + run.Error
		}
		fmt.Fprintf(out, "Last run: %s %s, %s (took %s)\n",
			run.Command, humanize.RelTime(run.FinishedAt, now, "ago", "from now"), result,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSTATE\tUPDATED\tID")
	for _, rec := range ledger.Resources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Kind.DisplayName(), rec.State, humanize.Time(rec.UpdatedAt), rec.ID)
	}
	return w.Flush()
}
