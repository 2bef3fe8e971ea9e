package cli

import (
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
)

var describeRemote string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Summarize a scenario",
	Long:  `Print the scenario's satellites, their capacities and the number of steps.`,
	RunE:  runDescribe,
}

func init() {
	describeCmd.Flags().StringVar(&describeRemote, "remote", "", "describe the scenario loaded by an allocator-server")

	RootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	if describeRemote != "" {
		conn, err := dialRemote(describeRemote)
		if err != nil {
			return err
		}
		defer conn.Close()
		d, err := allocsvc.NewClient(conn).Describe(cmd.Context())
		if err != nil {
			return err
		}
		renderDescription(cmd.OutOrStdout(), d)
		return nil
	}

	base, err := loadKB()
	if err != nil {
		return err
	}
	renderDescription(cmd.OutOrStdout(), allocsvc.NewService(base).Description())
	return nil
}
