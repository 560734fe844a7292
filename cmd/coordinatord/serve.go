package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netsuite-assist/coordinator/internal/reqctx"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/tools"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// turnRequest is one line of a newline-delimited JSON input stream.
type turnRequest struct {
	TenantID            string `json:"tenant_id"`
	ActorID             string `json:"actor_id"`
	Message             string `json:"message"`
	WorkspaceVernacular string `json:"workspace_vernacular"`
}

// turnEventOut is the wire shape of a coordinator.TurnEvent, flattened to
// plain JSON for a line-oriented transport.
type turnEventOut struct {
	Kind    string `json:"kind"`
	Agent   string `json:"agent,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
	Text    string `json:"text,omitempty"`
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read newline-delimited turn requests from stdin, write newline-delimited turn events to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			return runServeLoop(a)
		},
	}
}

func runServeLoop(a *app) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req turnRequest
		if err := json.Unmarshal(line, &req); err != nil {
			encoder.Encode(turnEventOut{Kind: "error", Text: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		ctx := reqctx.With(context.Background(), models.RequestContext{
			TenantID:      req.TenantID,
			ActorID:       req.ActorID,
			CorrelationID: repository.SystemRandom{}.UUID(),
		})
		events := a.coord.Handle(ctx, req.TenantID, req.Message, req.WorkspaceVernacular, tools.Catalog())
		for ev := range events {
			encoder.Encode(turnEventOut{
				Kind:    string(ev.Kind),
				Agent:   ev.Agent,
				Skipped: ev.Skipped,
				Failed:  ev.Failed,
				Text:    ev.Text,
			})
		}
	}
	return scanner.Err()
}
