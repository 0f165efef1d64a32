package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fil512/auntruth-sub001/internal/config"
	"github.com/fil512/auntruth-sub001/internal/resolver"
	"github.com/fil512/auntruth-sub001/internal/server"
	"github.com/fil512/auntruth-sub001/internal/web"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "dev"

// httpServer abstracts the running server so serveLoop is testable.
type httpServer interface {
	Serve() error
	Addr() string
	Shutdown(ctx context.Context) error
}

// makeSignalCh is swappable for tests; the returned func unregisters.
var makeSignalCh = func() (chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// loadConfig is swappable for tests.
var loadConfig = config.Load

func newRootCmd(out io.Writer) *cobra.Command {
	var port int

	root := &cobra.Command{
		Use:           "auntruth",
		Short:         "Local development server for the AuntRuth static site",
		Long:          "Serves the generated site tree at / and under the configured mount prefix,\nwith client caching disabled so local edits show up on plain reload.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			res, err := resolver.New(cfg.DocRoot, cfg.URLPrefix)
			if err != nil {
				return err
			}

			srv := server.New(fmt.Sprintf(":%d", cfg.Port), web.NewHandler(res, out))
			if err := srv.Listen(); err != nil {
				return err
			}

			fmt.Fprintf(out, "Serving %s at http://localhost:%d%s/ and http://localhost:%d/\n",
				cfg.DocRoot, cfg.Port, cfg.URLPrefix, cfg.Port)
			fmt.Fprintf(out, "Listening on %s\n", srv.Addr())
			return serveLoop(srv, out)
		},
	}
	root.Flags().IntVar(&port, "port", config.DefaultPort, "port to listen on")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the auntruth version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "auntruth version %s\n", version)
		},
	}
	root.AddCommand(versionCmd)

	return root
}

// serveLoop blocks until the server fails or a termination signal
// arrives, then drains in-flight responses before returning.
func serveLoop(srv httpServer, out io.Writer) error {
	sigCh, stop := makeSignalCh()
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		fmt.Fprintf(out, "shutting down (%s)\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func runWithOutput(args []string, out io.Writer) error {
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd.Execute()
}

func run(args []string) error {
	return runWithOutput(args, os.Stdout)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
