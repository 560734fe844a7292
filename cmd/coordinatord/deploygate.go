package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netsuite-assist/coordinator/internal/assertgate"
	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

func newDeployGateCmd(configPath *string) *cobra.Command {
	var tenantID, changesetID, overrideReason string
	var requireAssertions bool

	cmd := &cobra.Command{
		Use:   "deploy-gate [changeset-id]",
		Short: "Evaluate whether a changeset may deploy to sandbox, without running the deploy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changesetID = args[0]
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
				CorrelationID: repository.SystemRandom{}.UUID(),
			})
			clock := repository.SystemClock{}
			random := repository.SystemRandom{}
			result, err := assertgate.EvaluateDeployGate(ctx, a.repo, clock, random, tenantID, changesetID, requireAssertions, overrideReason)
			if err != nil {
				return err
			}
			if result.Allowed {
				if result.OverrideApplied {
					fmt.Printf("allowed (override applied: %s)\n", result.OverrideReason)
				} else {
					fmt.Println("allowed")
				}
			} else {
				fmt.Printf("blocked: %s\n", result.BlockedReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&overrideReason, "override-reason", "", "operator justification to bypass a missing assertion pass")
	cmd.Flags().BoolVar(&requireAssertions, "require-assertions", true, "require a passing suiteql_assertions run before allowing deploy")
	cmd.MarkFlagRequired("tenant")
	return cmd
}
