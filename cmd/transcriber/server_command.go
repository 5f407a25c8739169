package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transcriber/internal/api"
	"transcriber/internal/router"
)

func newServerCommand(ctx *commandContext) *cobra.Command {
	serverCmd := &cobra.Command{
		Use:         "server",
		Short:       "Inspect or wake the model server",
		Annotations: routeAnnotation(router.Home),
	}

	serverCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the model server is online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			state, err := a.Client.ServerStatus(cmd.Context())
			if err != nil {
				return ctx.apiError(err)
			}
			kind := statusWarn
			if state == api.ServerOnline {
				kind = statusOK
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Model server", kind, string(state), shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	})

	serverCmd.AddCommand(&cobra.Command{
		Use:   "wake",
		Short: "Ask the backend to start the model server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Client.WakeServer(cmd.Context()); err != nil {
				return ctx.apiError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wake request sent")
			return nil
		},
	})

	return serverCmd
}
