package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"transcriber/internal/api"
	"transcriber/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, storage, backend and media tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Client", colorize) {
				fmt.Fprintln(out, line)
			}
			configKind, configDetail := statusOK, ctx.configPath
			if !ctx.configExists {
				configKind, configDetail = statusInfo, ctx.configPath+" (not found; defaults in effect)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", configKind, configDetail, colorize))

			storageKind, storageDetail := statusOK, fmt.Sprintf("%s (%s)", a.Config.Storage.Backend, storageLabel(a.Config))
			if a.StorageDegraded() {
				storageKind, storageDetail = statusWarn, a.Config.Storage.Backend+" unavailable, using memory"
			}
			fmt.Fprintln(out, renderStatusLine("Storage", storageKind, storageDetail, colorize))

			if !a.Session.IsAuthenticated() {
				fmt.Fprintln(out, renderStatusLine("Session", statusInfo, "not logged in", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Session", statusOK, "logged in", colorize))
				state, err := a.Client.ServerStatus(cmd.Context())
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("Backend", statusError, ctx.apiError(err).Error(), colorize))
				case state == api.ServerOnline:
					fmt.Fprintln(out, renderStatusLine("Backend", statusOK, a.Client.BaseURL()+" (model online)", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Backend", statusWarn, a.Client.BaseURL()+" (model "+string(state)+")", colorize))
				}
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			statuses := deps.CheckBinaries(cmd.Context(), deps.UploadRequirements(a.Config.Upload))
			for _, line := range dependencyLines(statuses, colorize) {
				fmt.Fprintln(out, line)
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Version != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Version)
			} else if dep.Path != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Path)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
			if desc := strings.TrimSpace(dep.Description); desc != "" {
				detail += "; " + strings.ToLower(desc[:1]) + desc[1:] + " is disabled"
			}
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}
