package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"transcriber/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if !notifications.Enabled(a.Notifier) {
				return errors.New("notifications are disabled; set notifications.ntfy_topic")
			}
			if err := a.Notifier.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
