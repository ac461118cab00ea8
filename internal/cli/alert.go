package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyprime/alertbar/pkg/banner"
	"github.com/happyprime/alertbar/pkg/model"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage alert records",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an alert",
	RunE:  runAlertAdd,
}

var alertScheduleCmd = &cobra.Command{
	Use:   "schedule <id>",
	Short: "Update an alert's display window and severity",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertSchedule,
}

var alertDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertDelete,
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertScheduleCmd)
	alertCmd.AddCommand(alertDeleteCmd)

	alertAddCmd.Flags().StringP("title", "t", "", "Alert heading")
	alertAddCmd.Flags().StringP("body", "b", "", "Alert body text")
	alertAddCmd.Flags().StringP("url", "u", "", "Link URL")
	alertAddCmd.Flags().String("level", "", "Severity level id")
	alertAddCmd.Flags().String("through", "", "Display-through instant (RFC 3339)")
	_ = alertAddCmd.MarkFlagRequired("title")

	alertScheduleCmd.Flags().String("through", "", "Display-through instant (RFC 3339)")
	alertScheduleCmd.Flags().Bool("clear-through", false, "Remove the display-through instant")
	alertScheduleCmd.Flags().String("level", "", "Severity level id")
	alertScheduleCmd.Flags().Bool("clear-level", false, "Remove the severity assignment")
}

func parseThrough(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse --through: %w", err)
	}
	t = t.UTC()
	return &t, nil
}

func runAlertAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	body, _ := cmd.Flags().GetString("body")
	url, _ := cmd.Flags().GetString("url")
	levelID, _ := cmd.Flags().GetString("level")
	throughRaw, _ := cmd.Flags().GetString("through")

	through, err := parseThrough(throughRaw)
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	alert := &model.AlertRecord{
		Title:          title,
		Body:           body,
		URL:            url,
		DisplayThrough: through,
	}
	if levelID != "" {
		alert.LevelID = &levelID
	}

	if err := c.service.SaveAlert(cmd.Context(), alert); err != nil {
		return fmt.Errorf("add alert: %w", err)
	}

	fmt.Printf("Alert created: %s\n", alert.ID)
	return nil
}

func runAlertSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	throughRaw, _ := cmd.Flags().GetString("through")
	clearThrough, _ := cmd.Flags().GetBool("clear-through")
	levelID, _ := cmd.Flags().GetString("level")
	clearLevel, _ := cmd.Flags().GetBool("clear-level")

	through, err := parseThrough(throughRaw)
	if err != nil {
		return err
	}

	update := banner.ScheduleUpdate{
		DisplayThrough:      through,
		ClearDisplayThrough: clearThrough,
		ClearLevel:          clearLevel,
	}
	if levelID != "" {
		update.LevelID = &levelID
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.service.ScheduleAlert(cmd.Context(), args[0], update); err != nil {
		return err
	}

	fmt.Printf("Alert %s updated\n", args[0])
	return nil
}

func runAlertDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := initCore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.service.DeleteAlert(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Alert %s deleted\n", args[0])
	return nil
}
