package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/cli/config"
	httpctrl "github.com/secmon-lab/caseline/pkg/controller/http"
	"github.com/secmon-lab/caseline/pkg/service/identity"
	"github.com/secmon-lab/caseline/pkg/service/worker"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var baseURL string
	var apiToken string
	var ackTimeout time.Duration
	var resyncInterval time.Duration
	var resyncConcurrency int
	var retryAttempts int
	var retryBackoff time.Duration
	var identityTTL time.Duration
	var appCfg config.App
	var repoCfg config.Repository
	var slackCfg config.Slack
	var gateCfg config.PublishGate
	var sentryCfg config.Sentry

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("CASELINE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Web UI base URL used for case links (e.g., https://your-domain.com)",
			Sources:     cli.EnvVars("CASELINE_BASE_URL"),
			Destination: &baseURL,
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Bearer token required by the case API (empty disables the check)",
			Sources:     cli.EnvVars("CASELINE_API_TOKEN"),
			Destination: &apiToken,
		},
		&cli.DurationFlag{
			Name:        "ack-timeout",
			Usage:       "Longest time an interaction request waits for acknowledgment",
			Value:       httpctrl.DefaultAckTimeout,
			Sources:     cli.EnvVars("CASELINE_ACK_TIMEOUT"),
			Destination: &ackTimeout,
		},
		&cli.DurationFlag{
			Name:        "resync-interval",
			Usage:       "Interval of the stale card resync worker (0 disables it)",
			Value:       time.Minute,
			Category:    "Worker",
			Sources:     cli.EnvVars("CASELINE_RESYNC_INTERVAL"),
			Destination: &resyncInterval,
		},
		&cli.IntFlag{
			Name:        "resync-concurrency",
			Usage:       "Number of tenants resynced in parallel",
			Value:       4,
			Category:    "Worker",
			Sources:     cli.EnvVars("CASELINE_RESYNC_CONCURRENCY"),
			Destination: &resyncConcurrency,
		},
		&cli.IntFlag{
			Name:        "publish-retry-attempts",
			Usage:       "Delivery attempts per card publish",
			Value:       usecase.DefaultRetryPolicy.Attempts,
			Category:    "Publish Gate",
			Sources:     cli.EnvVars("CASELINE_PUBLISH_RETRY_ATTEMPTS"),
			Destination: &retryAttempts,
		},
		&cli.DurationFlag{
			Name:        "publish-retry-backoff",
			Usage:       "Initial backoff between card publish attempts",
			Value:       usecase.DefaultRetryPolicy.InitialBackoff,
			Category:    "Publish Gate",
			Sources:     cli.EnvVars("CASELINE_PUBLISH_RETRY_BACKOFF"),
			Destination: &retryBackoff,
		},
		&cli.DurationFlag{
			Name:        "identity-cache-ttl",
			Usage:       "How long resolved Slack users are cached",
			Value:       identity.DefaultCacheTTL,
			Category:    "Slack",
			Sources:     cli.EnvVars("CASELINE_IDENTITY_CACHE_TTL"),
			Destination: &identityTTL,
		},
	}

	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, gateCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return err
			}
			defer flush()

			cfg, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load app configuration")
			}
			tenants, err := cfg.TenantRegistry()
			if err != nil {
				return goerr.Wrap(err, "failed to build tenant registry")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack")
			}
			gate, closeGate, err := gateCfg.Configure(ctx)
			defer closeGate()
			if err != nil {
				return goerr.Wrap(err, "failed to configure publish gate")
			}

			uc, err := usecase.New(repo, slackSvc, identity.New(slackSvc, identity.WithCacheTTL(identityTTL)), tenants, gate,
				usecase.WithBaseURL(baseURL),
				usecase.WithRetryPolicy(usecase.RetryPolicy{Attempts: retryAttempts, InitialBackoff: retryBackoff}),
				usecase.WithGates(cfg.UseCaseGates()...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			var resync *worker.CardResyncWorker
			if resyncInterval > 0 {
				resync = worker.NewCardResyncWorker(tenants, uc.Case, resyncInterval, resyncConcurrency)
				if err := resync.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start card resync worker")
				}
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithCaseAPI(uc.Case, apiToken),
			}
			if slackCfg.IsInteractionConfigured() {
				handler := httpctrl.NewSlackInteractionHandler(uc.Dispatcher, ackTimeout)
				httpOpts = append(httpOpts, httpctrl.WithSlackInteraction(handler, slackCfg.SigningSecret()))
				logger.Info("Slack interaction handler enabled")
			} else {
				logger.Warn("Slack signing secret not configured, interactions are disabled")
			}
			if apiToken == "" {
				logger.Warn("Case API is running without a bearer token")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server",
					"addr", addr,
					"tenants", len(tenants.List()),
					"slack", slackCfg,
					"publish_gate", gateCfg,
					"sentry", sentryCfg,
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				if resync != nil {
					resync.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
