package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/storydesk/storydesk/internal/model"
	"github.com/storydesk/storydesk/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create, list and maintain the accounts that can sign in to the admin API.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminPasswdCmd())
	cmd.AddCommand(newAdminActiveCmd("activate", true))
	cmd.AddCommand(newAdminActiveCmd("deactivate", false))

	return cmd
}

// withAuth opens the store and auth service for the duration of fn.
func withAuth(fn func(ctx context.Context, auth *service.AuthService) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	auth, err := newAuthService(cfg, store, newLogger(io.Discard, cfg.Log))
	if err != nil {
		return err
	}
	return fn(context.Background(), auth)
}

// promptPassword reads a password twice from the terminal.
func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  storydesk admin create --email owner@example.com --password secret123
  storydesk admin create --email editor@example.com --role editor  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pw
			}
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				admin, err := auth.Register(ctx, service.RegisterInput{
					Email:    email,
					Username: username,
					Password: password,
					Name:     name,
					Role:     model.Role(role),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d)\n", admin.Role, admin.Email, admin.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.Flags().StringVar(&username, "username", "", "Login username (derived from email if omitted)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleSuperAdmin), "Role: editor, admin or super_admin")
	cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				admins, err := auth.List(ctx)
				if err != nil {
					return err
				}
				return printAdmins(cmd.OutOrStdout(), admins, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printAdmins(out io.Writer, admins []model.Admin, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Fprintln(out, "No admin users configured. Use 'storydesk admin create' to create one.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tACTIVE\tLAST LOGIN")
	for _, a := range admins {
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		lastLogin := "never"
		if a.LastLoginAt != nil {
			lastLogin = a.LastLoginAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Email, a.Name, a.Role, active, lastLogin)
	}
	return tw.Flush()
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset an admin's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pw
			}
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				admin, err := auth.FindByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("admin %q: %w", email, err)
				}
				if err := auth.ResetPassword(ctx, admin.ID, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", admin.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- admin activate / deactivate ----------

func newAdminActiveCmd(use string, active bool) *cobra.Command {
	var email string

	short := "Re-enable a disabled admin"
	if !active {
		short = "Disable an admin so it can no longer sign in"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(func(ctx context.Context, auth *service.AuthService) error {
				admin, err := auth.FindByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("admin %q: %w", email, err)
				}
				// Actor 0 is the operator; it never matches a stored admin.
				if _, err := auth.SetActive(ctx, 0, admin.ID, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %q %sd\n", admin.Email, use)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}
