// Package cli holds the command plumbing shared by the service binaries.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/config"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/logging"
)

// RunFunc is the body of a service command.
type RunFunc func(ctx context.Context, cfg config.Config) error

// NewRootCommand returns a root command that loads the configuration,
// sets up logging and calls run with a context cancelled on SIGINT/SIGTERM.
func NewRootCommand(use, short, version string, run RunFunc) *cobra.Command {
	var (
		cfgFile string
		cfg     config.Config
	)
	v := viper.New()

	root := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			c.SetService(use)
			cfg = c
			logging.Setup(cfg.General.LogLevel, cfg.General.LogJSON)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log.WithFields(log.Fields{
				"version": version,
				"service": use,
			}).Info("starting service")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	root.PersistentFlags().Int("log-level", 4, "debug=5, info=4, error=2, fatal=1, panic=0")
	_ = v.BindPFlag("general.log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// Execute runs root and exits non-zero on error.
func Execute(root *cobra.Command) {
	if err := root.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// ServeHTTP runs an HTTP server on bind until ctx is done.
func ServeHTTP(ctx context.Context, bind string, h http.Handler) error {
	hs := &http.Server{
		Addr:              bind,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("bind", bind).Info("http: listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "http server error")
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shCtx); err != nil {
		return errors.Wrap(err, "http shutdown error")
	}
	return nil
}
