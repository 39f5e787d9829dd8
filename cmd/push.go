package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultPushPlatform = "web"

func newPushCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Manage push notification registration",
	}

	cmd.AddCommand(newPushEnableCmd(app), newPushDisableCmd(app))

	return cmd
}

func newPushEnableCmd(app *app) *cobra.Command {
	var (
		deviceToken string
		platform    string
	)

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Turn notifications on and register this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requireSession(cmd, app); err != nil {
				return err
			}

			token := deviceToken
			if token == "" {
				prefs, err := app.prefs.Get(cmd.Context())
				if err != nil {
					return fmt.Errorf("read preferences: %w", err)
				}
				token = prefs.DeviceID
			}

			registered, err := app.push.Enable(cmd.Context(), token, platform)
			if err != nil {
				return explain(fmt.Errorf("enable notifications: %w", err))
			}
			if !registered {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Registration already in progress")
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Notifications enabled")
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceToken, "device-token", "", "Push device token (defaults to this device's id)")
	cmd.Flags().StringVar(&platform, "platform", defaultPushPlatform, "Push platform (web|ios|android)")

	return cmd
}

func newPushDisableCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Turn notifications off and remove this device's registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := requireSession(cmd, app); err != nil {
				return err
			}

			if err := app.push.Disable(cmd.Context()); err != nil {
				return explain(fmt.Errorf("disable notifications: %w", err))
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Notifications disabled")
			return nil
		},
	}
}
