package main

import (
	"fmt"

	"DrawdownSentinel/internal/report"

	"github.com/spf13/cobra"
)

func resetAmmoCmd(cfgPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "reset-ammo",
		Short: "Mark all three tranches ready again for a new market cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.ammo.Reset(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Print(report.FormatAmmoStatus(st))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "default", "user id")
	return cmd
}
