package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storydesk/storydesk/internal/server"
)

const banner = `
     _                  _           _
 ___| |_ ___  _ __ _  _| |___ ___ _| |__
(_-<|  _/ _ \| '_| || / _  / -_|_-< / /
/__/ \__\___/|_|  \_, \__,_\___/__/_\_\
                  |__/
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP server that exposes the public site API and the admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	v.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Info("store initialized", "dialect", store.Dialect().Name)

	authSvc, err := newAuthService(cfg, store, logger)
	if err != nil {
		return err
	}

	hasAdmin, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - POST /api/v1/auth/setup or run: storydesk admin create")
	}

	srv, err := server.New(server.ConfigFrom(cfg, versionString()), store, authSvc, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	base := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "→ Storydesk %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on %s\n", base)
	fmt.Fprintf(out, "→ API:        %s/api/v1\n", base)
	fmt.Fprintf(out, "→ OpenAPI:    %s/openapi.json\n", base)
	fmt.Fprintf(out, "→ Health:     %s/healthz\n", base)
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}
