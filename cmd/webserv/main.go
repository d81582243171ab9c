// Command webserv runs the configurable HTTP origin server: a single
// root cobra command that loads a directive file and drives the event
// loop until SIGINT/SIGTERM, per spec.md §6's CLI contract.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webserv/webserv/internal/config"
	"github.com/webserv/webserv/internal/engine"
	"github.com/webserv/webserv/internal/handler"
)

const defaultConfigPath = "config/default.conf"

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "webserv [config-path]",
		Short:        "A configurable HTTP/1.1 origin server",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return run(path)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(configPath string) error {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", configPath, err)
	}
	log.WithField("servers", len(root.Servers)).Info("configuration loaded")

	router := handler.New(log.WithField("component", "router"))

	eng, err := engine.New(root, router, log.WithField("component", "engine"))
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("webserv is running")
	err = eng.Run(ctx)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("event loop: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
