package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/constellation-allocator/internal/store"
)

var (
	historyDataset string
	historyLimit   int
	historyID      int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded allocation runs",
	Long: `List runs recorded by 'allocator run' or 'allocator sweep' with --db,
newest first. Pass --id to show one run's assignments.`,
	Example: `  allocator history --db history.db
  allocator history --db history.db --dataset demo --limit 5
  allocator history --db history.db --id 12`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDataset, "dataset", "", "only show runs of this dataset")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to show (0 = all)")
	historyCmd.Flags().Int64Var(&historyID, "id", 0, "show assignments of a single run")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := getDBPath()
	if path == "" {
		return errors.New("no history database: pass --db or set ALLOC_DB")
	}
	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if historyID != 0 {
		run, err := st.GetRun(historyID)
		if err != nil {
			return err
		}
		renderRun(cmd.OutOrStdout(), run)
		return nil
	}

	runs, err := st.ListRuns(historyDataset, historyLimit)
	if err != nil {
		return err
	}
	renderHistory(cmd.OutOrStdout(), runs)
	return nil
}
