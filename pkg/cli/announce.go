package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/cli/config"
	"github.com/secmon-lab/caseline/pkg/service/identity"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdAnnounce() *cli.Command {
	var tenant string
	var caseID int64
	var channelID string
	var baseURL string
	var appCfg config.App
	var repoCfg config.Repository
	var slackCfg config.Slack
	var gateCfg config.PublishGate

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tenant",
			Aliases:     []string{"t"},
			Usage:       "Tenant slug of the case",
			Required:    true,
			Destination: &tenant,
		},
		&cli.Int64Flag{
			Name:        "case-id",
			Usage:       "Case ID to announce",
			Required:    true,
			Destination: &caseID,
		},
		&cli.StringFlag{
			Name:        "channel",
			Usage:       "Slack channel ID the card is posted to",
			Required:    true,
			Destination: &channelID,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Web UI base URL used for case links",
			Sources:     cli.EnvVars("CASELINE_BASE_URL"),
			Destination: &baseURL,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, gateCfg.Flags()...)

	return &cli.Command{
		Name:  "announce",
		Usage: "Post the card of an existing case and bind it to the channel",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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
					logging.Default().Error("failed to close repository", "error", err.Error())
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

			uc, err := usecase.New(repo, slackSvc, identity.New(slackSvc), tenants, gate,
				usecase.WithBaseURL(baseURL),
				usecase.WithGates(cfg.UseCaseGates()...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize use cases")
			}

			bound, err := uc.Case.Announce(ctx, tenant, caseID, channelID)
			if err != nil {
				return goerr.Wrap(err, "failed to announce case", goerr.V("tenant", tenant), goerr.V("case_id", caseID))
			}

			_, _ = fmt.Fprintf(c.Root().Writer, "%s announced in %s (thread %s)\n",
				bound.DisplayName(), bound.Conversation.ChannelID, bound.Conversation.ThreadID)
			return nil
		},
	}
}
