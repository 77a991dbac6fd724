package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/cli/config"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var appCfg config.App

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the configuration file and the action registry",
		Flags:   appCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer

			cfg, err := appCfg.Configure()
			if err != nil {
				printFailure(w, "configuration", err.Error())
				return goerr.Wrap(err, "configuration validation failed")
			}

			for _, t := range cfg.Tenants {
				printOK(w, "tenant", fmt.Sprintf("%s (%s): %d project(s), %d case type(s)", t.Slug, t.Name, len(t.Projects), len(t.CaseTypes)))
				if len(t.Projects) == 0 {
					printWarn(w, "tenant", fmt.Sprintf("%s has no project, reported cases cannot be created", t.Slug))
				}
			}
			if cfg.DefaultTenant == "" {
				printWarn(w, "tenant", "no default_tenant, shortcuts without a subject will be rejected")
			}

			result, err := usecase.CheckActions(cfg.UseCaseGates())
			if err != nil {
				return goerr.Wrap(err, "failed to build action registry")
			}

			if result.HasIssues() {
				for _, issue := range result.Issues {
					printFailure(w, issue.Source, fmt.Sprintf("%s: %s", issue.ActionID, issue.Message))
				}
				return goerr.Wrap(result.Err(), "action registry validation failed", goerr.V("issues", len(result.Issues)))
			}

			printOK(w, "actions", fmt.Sprintf("%d gate(s) applied, every referenced action is registered", len(cfg.Gates)))
			return nil
		},
	}
}

func printOK(w io.Writer, scope, msg string) {
	_, _ = color.New(color.FgGreen, color.Bold).Fprint(w, "[OK]   ")
	_, _ = fmt.Fprintf(w, "%-10s %s\n", scope, msg)
}

func printWarn(w io.Writer, scope, msg string) {
	_, _ = color.New(color.FgYellow, color.Bold).Fprint(w, "[WARN] ")
	_, _ = fmt.Fprintf(w, "%-10s %s\n", scope, msg)
}

func printFailure(w io.Writer, scope, msg string) {
	_, _ = color.New(color.FgRed, color.Bold).Fprint(w, "[FAIL] ")
	_, _ = fmt.Fprintf(w, "%-10s %s\n", scope, msg)
}
