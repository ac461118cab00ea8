package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/happyprime/alertbar/pkg/model"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Manage severity levels",
}

var levelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a severity level",
	RunE:  runLevelAdd,
}

var levelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List severity levels",
	RunE:  runLevelList,
}

var levelSetDefaultCmd = &cobra.Command{
	Use:   "set-default <id>",
	Short: "Make a level the default expired alerts demote to",
	Args:  cobra.ExactArgs(1),
	RunE:  runLevelSetDefault,
}

var levelDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a severity level",
	Args:  cobra.ExactArgs(1),
	RunE:  runLevelDelete,
}

func init() {
	rootCmd.AddCommand(levelCmd)
	levelCmd.AddCommand(levelAddCmd)
	levelCmd.AddCommand(levelListCmd)
	levelCmd.AddCommand(levelSetDefaultCmd)
	levelCmd.AddCommand(levelDeleteCmd)

	levelAddCmd.Flags().String("id", "", "Level id (generated when empty)")
	levelAddCmd.Flags().StringP("label", "L", "", "Display label")
	levelAddCmd.Flags().IntP("rank", "r", 0, "Tier rank; the lowest rank is the lowest tier")
	levelAddCmd.Flags().Bool("default", false, "Also make this the default level")
	_ = levelAddCmd.MarkFlagRequired("label")
}

func runLevelAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("id")
	label, _ := cmd.Flags().GetString("label")
	rank, _ := cmd.Flags().GetInt("rank")
	makeDefault, _ := cmd.Flags().GetBool("default")

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	level := &model.SeverityLevel{ID: id, Label: label, Rank: rank}
	if err := c.registry.Create(cmd.Context(), level); err != nil {
		return fmt.Errorf("add level: %w", err)
	}

	if makeDefault {
		if err := c.registry.SetDefault(cmd.Context(), level.ID); err != nil {
			return err
		}
	}

	fmt.Printf("Level added: %s (%s, rank %d)\n", level.Label, level.ID, level.Rank)
	return nil
}

func runLevelList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	all, err := c.registry.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}

	if len(all) == 0 {
		fmt.Println("No severity levels configured. Use 'alertbar level add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tLABEL\tRANK\tDEFAULT\n")
	for _, level := range all {
		def := ""
		if level.IsDefault {
			def = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", level.ID, level.Label, level.Rank, def)
	}
	w.Flush()

	return nil
}

func runLevelSetDefault(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.registry.SetDefault(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Default level set to %s\n", args[0])
	return nil
}

func runLevelDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.registry.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Level %s deleted\n", args[0])
	return nil
}
