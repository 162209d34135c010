package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"signscribe/internal/auth"
	"signscribe/internal/logging"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Administer accounts in the document store",
	}
	usersCmd.AddCommand(newUsersAddCommand(ctx))
	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := ctx.localProvider(cmd.Context())
			if err != nil {
				return err
			}
			prompt := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if err := askMissing(prompt, &name, "Name: "); err != nil {
				return err
			}
			if err := askMissing(prompt, &email, "Email: "); err != nil {
				return err
			}
			if err := askMissing(prompt, &password, "Password: "); err != nil {
				return err
			}
			identity, err := provider.SignUp(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", identity.User.Email, identity.User.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Sign in and manage your profile",
	}
	accountCmd.AddCommand(
		newAccountLoginCommand(ctx),
		newAccountLogoutCommand(ctx),
		newAccountWhoamiCommand(ctx),
		newAccountResetCommand(ctx),
		newAccountProfileCommand(ctx),
	)
	return accountCmd
}

// openSession builds a session whose changes are persisted to the session
// file and resumes the stored identity when there is one. A stored token that
// no longer verifies is discarded.
func (c *commandContext) openSession(ctx context.Context) (*auth.Session, error) {
	provider, err := c.localProvider(ctx)
	if err != nil {
		return nil, err
	}
	file, err := c.sessionFile()
	if err != nil {
		return nil, err
	}
	session := auth.NewSession(provider)
	session.OnSessionChange(func(identity *auth.Identity) {
		if err := file.Save(identity); err != nil {
			logging.WarnWithContext(c.log(), "failed to persist session", "session_save_failed",
				logging.String("path", file.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next command will not see this sign-in change"),
			)
		}
	})

	stored, ok, err := file.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		if err := session.Resume(ctx, stored); err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrUserNotFound) {
				return nil, err
			}
			_ = file.Save(nil)
		}
	}
	return session, nil
}

func newAccountLoginCommand(ctx *commandContext) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			prompt := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if err := askMissing(prompt, &email, "Email: "); err != nil {
				return err
			}
			if err := askMissing(prompt, &password, "Password: "); err != nil {
				return err
			}
			if err := session.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			current, _ := session.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", current.User.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newAccountLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if !session.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newAccountWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := session.Current()
			if !ok {
				return auth.ErrNotAuthenticated
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:    %s\n", current.User.Name)
			fmt.Fprintf(out, "Email:   %s\n", current.User.Email)
			if current.User.PhotoURL != "" {
				fmt.Fprintf(out, "Photo:   %s\n", current.User.PhotoURL)
			}
			fmt.Fprintf(out, "Expires: %s\n", formatAge(current.ExpiresAt))
			return nil
		},
	}
}

func newAccountResetCommand(ctx *commandContext) *cobra.Command {
	var email, token, password string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Request a password reset, or complete one with --token",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			prompt := newPrompter(cmd.InOrStdin(), out)
			if strings.TrimSpace(token) == "" {
				if err := askMissing(prompt, &email, "Email: "); err != nil {
					return err
				}
				if err := session.ResetPassword(cmd.Context(), email); err != nil {
					return err
				}
				fmt.Fprintln(out, "If the account exists, a reset token has been sent")
				return nil
			}
			provider, err := ctx.localProvider(cmd.Context())
			if err != nil {
				return err
			}
			if err := askMissing(prompt, &password, "New password: "); err != nil {
				return err
			}
			if err := provider.ConfirmReset(cmd.Context(), token, password); err != nil {
				return err
			}
			fmt.Fprintln(out, "Password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&token, "token", "", "Reset token received by email")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when omitted)")
	return cmd
}

func newAccountProfileCommand(ctx *commandContext) *cobra.Command {
	var name, photoURL string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the signed-in user's name or photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openSession(cmd.Context())
			if err != nil {
				return err
			}
			var update auth.ProfileUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("photo-url") {
				update.PhotoURL = &photoURL
			}
			if update.Name == nil && update.PhotoURL == nil {
				return errors.New("nothing to update: pass --name or --photo-url")
			}
			user, err := session.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated for %s\n", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&photoURL, "photo-url", "", "New photo URL")
	return cmd
}

func askMissing(p *prompter, value *string, question string) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	answer, err := p.line(question)
	if err != nil {
		return err
	}
	*value = answer
	return nil
}
