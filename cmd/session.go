package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email         string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func (f *credentialFlags) credentials(in io.Reader) (domain.Credentials, error) {
	password := f.password
	if f.passwordStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return domain.Credentials{}, fmt.Errorf("read password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return domain.Credentials{}, errors.New("password is required (--password or --password-stdin)")
	}

	return domain.Credentials{Email: strings.TrimSpace(f.email), Password: password}, nil
}

func newLoginCmd(app *app) *cobra.Command {
	var flags credentialFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			credentials, err := flags.credentials(cmd.InOrStdin())
			if err != nil {
				return err
			}

			session, err := app.sessions.Login(cmd.Context(), credentials)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Email)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newRegisterCmd(app *app) *cobra.Command {
	var (
		flags    credentialFlags
		fullName string
		language string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			credentials, err := flags.credentials(cmd.InOrStdin())
			if err != nil {
				return err
			}

			session, err := app.sessions.Register(cmd.Context(), domain.Registration{
				Credentials: credentials,
				FullName:    strings.TrimSpace(fullName),
				Language:    language,
			})
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Welcome %s, you are signed in\n", session.User.FullName)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&fullName, "name", "", "Full name")
	cmd.Flags().StringVar(&language, "language", "", "Preferred language (e.g. en, fr)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := restoreSession(cmd, app)
			if err != nil {
				app.logger.Debug().Err(err).Msg("restore before logout failed")
			}
			if session.Present() {
				if err := app.push.Unregister(cmd.Context()); err != nil {
					app.logger.Warn().Err(err).Msg("push unregistration failed")
				}
			}

			if err := app.sessions.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd, app)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if session.User != nil {
				_, _ = fmt.Fprintf(out, "%s <%s>\n", session.User.FullName, session.User.Email)
				_, _ = fmt.Fprintf(out, "id: %s\n", session.User.ID)
			}
			if expiresAt, ok := domain.TokenExpiry(session.Tokens.AccessToken); ok {
				_, _ = fmt.Fprintf(out, "access token expires: %s\n", expiresAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}
