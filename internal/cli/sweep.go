package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Demote all expired alerts now",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.sweeper.Sweep(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("Sweep complete; %d expiration(s) still pending\n", c.set.Len())
	return nil
}
