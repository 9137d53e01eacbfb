// The shopp command runs the Raharpa Shopp client in one of two modes: the
// admin dashboard or the end-user shop surface. Either mode assembles the
// client core, restores a persisted session when one is still inside its
// activity window, and serves the local UI host until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"raharpa/internal/app"
	"raharpa/internal/config"
	"raharpa/internal/localstore"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
	"raharpa/internal/uihost"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "shopp",
	Short: "Raharpa Shopp client",
	Long:  "Raharpa Shopp client: serves the shop's admin dashboard or end-user surface over a local UI host, kept live against the backend over websocket.",
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run the admin dashboard surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(models.RoleAdmin, "")
	},
}

var userCmd = &cobra.Command{
	Use:   "user [name]",
	Short: "Run the end-user shop surface, optionally logging in as the named user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		return run(models.RoleUser, name)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd, userCmd)
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(role models.Role, name string) error {
	l, err := logger.CreateLogger(config.LogLevel)
	if err != nil {
		l.Sugar().Warnf("Falling back to default log level: %s", err)
	}
	defer l.Sync()

	store, err := localstore.Open(config.LocalStorePath, []byte(config.LocalStoreKey), l)
	if err != nil {
		return err
	}

	core := app.New(app.Config{
		APIBaseURL:         config.APIBaseURL,
		SocketURL:          config.SocketURL,
		Store:              store,
		SessionWindow:      config.SessionWindow,
		AdminSessionWindow: config.AdminSessionWindow,
		Log:                l,
	})
	defer core.Close()

	ctx := context.Background()
	switch role {
	case models.RoleAdmin:
		if core.ResumeAdmin(ctx) {
			l.Info("Restored admin session")
		}
	default:
		if core.ResumeUser(ctx) {
			l.Info("Restored user session")
		} else if name != "" {
			if _, err := core.LoginUser(ctx, name); err != nil {
				l.Sugar().Warnf("Login as %q failed, the UI host serves the login form: %s", name, err)
			}
		}
	}

	server := &http.Server{
		Addr:    config.UIHostAddress,
		Handler: uihost.NewServer(core, l).Router(),
	}

	go func() {
		l.Sugar().Infof("UI host listening on %s", config.UIHostAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Sugar().Fatalf("UI host failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
