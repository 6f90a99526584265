// Command sample serves a small item catalog built on oapi and prints its
// OpenAPI document.
//
//	sample serve                          run the API (see config.go for env vars)
//	sample spec                           print the OpenAPI document as JSON
//	sample spec --format yaml -o api.yaml write it as YAML
package main

import (
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sample",
		Short:         "Item catalog API built on oapi",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newSpecCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // nothing to do on a failed flush

			reg := prometheus.NewRegistry()
			app := newApp(cfg, logger, reg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting server",
				zap.String("addr", cfg.Addr),
				zap.String("spec", "/openapi.json"),
			)
			if err := app.router.ListenAndServe(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve")
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

func newSpecCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Print the OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app := newApp(cfg, zap.NewNop(), prometheus.NewRegistry())

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output) //nolint:gosec // user-provided CLI flag
				if err != nil {
					return errors.Wrap(err, "create output file")
				}
				defer f.Close() //nolint:errcheck // write errors are reported by the encoder
				w = f
			}
			return writeSpec(app, format, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func writeSpec(app *app, format string, w io.Writer) error {
	switch format {
	case "json":
		return app.router.WriteSpec(w)
	case "yaml", "yml":
		return app.router.WriteSpecYAML(w)
	default:
		return errors.Newf("unknown format %q", format)
	}
}
