package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contactdesk/internal/devserver"
	"contactdesk/internal/session"
)

var (
	serveAddr  string
	serveUsers []string
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run an in-memory contacts service for local development",
	Long: `Starts an in-memory implementation of the contacts service API.
Data is lost on exit. Prometheus metrics are served at /metrics.

Users are given as name:password[:admin], for example:
  contactdesk serve-dev --user alice:secret --user root:secret:admin`,
	RunE: runServeDev,
}

func init() {
	serveDevCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveDevCmd.Flags().StringArrayVar(&serveUsers, "user", []string{"user:user", "admin:admin:admin"}, "Seed user name:password[:admin]")
}

func parseUser(arg string) (name, password string, role session.Role, err error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid --user %q (want name:password[:admin])", arg)
	}
	role = session.RoleUser
	if len(parts) == 3 {
		switch parts[2] {
		case "admin":
			role = session.RoleAdmin
		case "user":
		default:
			return "", "", "", fmt.Errorf("invalid role %q in --user %q", parts[2], arg)
		}
	}
	return parts[0], parts[1], role, nil
}

func runServeDev(cmd *cobra.Command, args []string) error {
	var opts []devserver.Option
	for _, u := range serveUsers {
		name, pass, role, err := parseUser(u)
		if err != nil {
			return err
		}
		opts = append(opts, devserver.WithUser(name, pass, role))
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           devserver.New(opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := commandContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("dev server listening", zap.String("addr", serveAddr), zap.Int("users", len(serveUsers)))
	fmt.Printf("Serving contacts API on http://%s (Ctrl+C to stop)\n", serveAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
