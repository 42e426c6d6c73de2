// Package main runs the protectclip service: a webhook receiver that
// retrieves UniFi Protect event video clips through a headless browser
// session against the controller's web console.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/protectclip/pkg/config"
	"github.com/entrhq/protectclip/pkg/credentials"
	"github.com/entrhq/protectclip/pkg/logging"
	"github.com/entrhq/protectclip/pkg/protect"
	"github.com/entrhq/protectclip/pkg/webhook"
)

const shutdownGracePeriod = 30 * time.Second

func main() {
	configPath := flag.String("config", "protectclip.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "protectclip: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logErr := logging.New("protectclip")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", logErr)
	}
	defer logger.Close()
	logger.Infof("starting, run id %s", logging.RunID())

	opts := protect.Options{
		Headless:      cfg.Controller.Headless,
		LaunchTimeout: cfg.Retrieval.LaunchTimeout.Std(),
		LoginTimeout:  cfg.Retrieval.LoginTimeout.Std(),
		LocateTimeout: cfg.Retrieval.LocateTimeout.Std(),
		MaxConcurrent: cfg.Retrieval.MaxConcurrent,
	}

	sessions := protect.NewSessionManager(opts, logger)
	if err := sessions.Initialize(); err != nil {
		return fmt.Errorf("initializing browser driver: %w", err)
	}
	defer func() {
		if err := sessions.Shutdown(); err != nil {
			logger.Errorf("browser driver shutdown: %v", err)
		}
	}()

	retriever := protect.NewRetriever(sessions, opts, logger)
	provider := &credentials.EnvProvider{EnvFile: cfg.EnvFile}
	sink := protect.DirSink{Dir: cfg.OutputDir}
	handler := webhook.NewHandler(retriever, provider, sink, cfg.WebhookSecret, cfg.Controller.Hostname, logger)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}

	// Drain in-flight retrievals so every browser session is released
	// before the driver stops.
	handler.Wait()
	return nil
}
