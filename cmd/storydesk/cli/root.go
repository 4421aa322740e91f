package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storydesk/storydesk/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by serve and /openapi.json
	v          = viper.New()
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	v = viper.New()
	config.SetViperDefaults(v)

	cmd := &cobra.Command{
		Use:   "storydesk",
		Short: "Content and audience admin API",
		Long: `Storydesk: a small admin backend for stories, waitlist signups and contact messages.

It serves a public JSON API for the marketing site and an authenticated admin API
with role-based access for editors, admins and super admins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./storydesk.yaml)")
	cmd.PersistentFlags().String("data-dir", "", "data directory for the SQLite store (default: ~/.storydesk)")
	v.BindPFlag("database.data_dir", cmd.PersistentFlags().Lookup("data-dir"))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("storydesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.storydesk")
	}

	v.SetEnvPrefix("STORYDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return err
		}
	}
	return nil
}
