package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/tools"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

func newAskCmd(configPath *string) *cobra.Command {
	var tenantID, actorID, vernacular string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run a single coordinator turn against a tenant and print the synthesized answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}

			ctx := reqctx.With(context.Background(), models.RequestContext{
				TenantID:      tenantID,
				ActorID:       actorID,
				CorrelationID: repository.SystemRandom{}.UUID(),
			})
			events := a.coord.Handle(ctx, tenantID, args[0], vernacular, tools.Catalog())
			for ev := range events {
				switch ev.Kind {
				case "tool_status":
					status := "ok"
					if ev.Skipped {
						status = "skipped"
					} else if ev.Failed {
						status = "failed"
					}
					fmt.Printf("[%s: %s]\n", ev.Agent, status)
				case "text":
					fmt.Print(ev.Text)
				case "message":
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&actorID, "actor", "", "acting user ID")
	cmd.Flags().StringVar(&vernacular, "vernacular", "", "tenant custom-field/entity vernacular injected into the suiteql specialist prompt")
	cmd.MarkFlagRequired("tenant")
	return cmd
}
