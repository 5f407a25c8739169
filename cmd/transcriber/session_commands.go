package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"transcriber/internal/api"
	"transcriber/internal/router"
	"transcriber/internal/session"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the transcription backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			user := strings.TrimSpace(username)
			if user == "" {
				user = a.Config.Backend.Username
			}
			if user == "" {
				if passwordStdin {
					return errors.New("--username is required with --password-stdin")
				}
				fmt.Fprint(out, "Username: ")
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("read username: %w", err)
				}
				user = line
			}
			if user == "" {
				return errors.New("username is required")
			}

			password, err := readPassword(cmd, in, passwordStdin)
			if err != nil {
				return err
			}

			creds, err := a.Client.Login(cmd.Context(), user, password)
			if err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return fmt.Errorf("login failed: %w", err)
				}
				return ctx.apiError(err)
			}
			if err := a.Session.LogIn(creds); err != nil {
				if !errors.Is(err, session.ErrPersistence) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: session could not be saved; you will need to log in again next time")
			}
			if err := a.Router.Navigate(router.Home); err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in as %s\n", user)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name (defaults to backend.username)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			raw, err := term.ReadPassword(int(file.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(raw), nil
		}
	}
	line, err := readLine(in)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			wasAuthenticated := a.Session.IsAuthenticated()
			if err := a.Session.LogOut(); err != nil {
				if !errors.Is(err, session.ErrPersistence) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: stored session could not be removed")
			}
			if !wasAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Show the current session",
		Args:        cobra.NoArgs,
		Annotations: routeAnnotation(router.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			snap := a.Session.Session()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:       %s\n", a.Client.BaseURL())
			if snap.Credentials != nil {
				fmt.Fprintf(out, "Token:         %s (%s)\n", maskToken(snap.Credentials.AccessToken), tokenType(snap.Credentials.TokenType))
			}
			storage := a.Config.Storage.Backend
			if a.StorageDegraded() {
				storage += " (unavailable, using memory)"
			}
			fmt.Fprintf(out, "Storage:       %s\n", storage)
			fmt.Fprintf(out, "Restored:      %s\n", yesNo(a.Restored()))
			fmt.Fprintf(out, "Client ID:     %s\n", a.ClientID)
			if snap.UploadedFile != "" {
				fmt.Fprintf(out, "Last upload:   %s\n", snap.UploadedFile)
			}
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 4) + token[len(token)-4:]
}

func tokenType(value string) string {
	if strings.TrimSpace(value) == "" {
		return "bearer"
	}
	return strings.ToLower(value)
}
