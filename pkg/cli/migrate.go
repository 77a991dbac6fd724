package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore indexes required by case queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("CASELINE_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("CASELINE_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Print the migration plan without applying it",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client", goerr.V("project_id", projectID))
			}
			defer func() {
				if err := client.Close(); err != nil {
					logging.Default().Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			indexConfig := getIndexConfig()

			plan, err := client.GetMigrationPlan(ctx, indexConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to create migration plan")
			}
			if len(plan.Steps) == 0 {
				printOK(w, "migrate", "indexes are up to date")
				return nil
			}

			for _, step := range plan.Steps {
				msg := fmt.Sprintf("%v %v: %v", step.Operation, step.Collection, step.Description)
				if step.Destructive {
					printWarn(w, "migrate", msg+" (destructive)")
				} else {
					printOK(w, "migrate", msg)
				}
			}
			if dryRun {
				return nil
			}

			if err := client.Migrate(ctx, indexConfig); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			printOK(w, "migrate", fmt.Sprintf("%d step(s) applied", len(plan.Steps)))
			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration. Cases live in a
// "cases" subcollection under each tenant document.
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "cases",
				Indexes: []fireconf.Index{
					// ListStaleCards: card_stale == true ORDER BY id
					{
						Fields: []fireconf.IndexField{
							{Path: "card_stale", Order: fireconf.OrderAscending},
							{Path: "id", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
