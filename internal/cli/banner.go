package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bannerCmd = &cobra.Command{
	Use:   "banner",
	Short: "Show the currently active alert",
	RunE:  runBanner,
}

func init() {
	rootCmd.AddCommand(bannerCmd)

	bannerCmd.Flags().Bool("home", false, "Resolve as if rendering the home page")
}

func runBanner(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	home, _ := cmd.Flags().GetBool("home")

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	snap := c.service.GetActiveAlertForDisplay(cmd.Context(), home)
	if snap.None {
		fmt.Println("No active alert.")
		return nil
	}

	fmt.Printf("Heading:  %s\n", snap.Heading)
	fmt.Printf("Content:  %s\n", snap.Content)
	if snap.URL != "" {
		fmt.Printf("URL:      %s\n", snap.URL)
	}
	fmt.Printf("Level:    %s\n", snap.LevelLabel)
	fmt.Printf("Through:  %s\n", snap.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
