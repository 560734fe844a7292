package main

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/netsuite-assist/coordinator/internal/audit"
	"github.com/netsuite-assist/coordinator/internal/coordinator"
	"github.com/netsuite-assist/coordinator/internal/governance"
	"github.com/netsuite-assist/coordinator/internal/llmadapter"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/internal/tools"
)

// app bundles the fully-wired capability graph a coordinatord subcommand
// runs against, built once per process invocation from Config.
type app struct {
	cfg         Config
	repo        repository.Repository
	adapter     llmadapter.Adapter
	auditLogger *audit.Logger
	registry    *tools.Registry
	dispatcher  *tools.Dispatcher
	coord       *coordinator.Coordinator
}

func buildApp(cfg Config) (*app, error) {
	repo, err := buildRepository(cfg)
	if err != nil {
		return nil, err
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return nil, err
	}

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("build audit logger: %w", err)
	}

	clock := repository.SystemClock{}
	random := repository.SystemRandom{}

	engine := governance.NewEngine(repo, clock, random, auditLogger, cfg.rateWindow())

	wiringRuntime := tools.Runtime{
		Repo:        repo,
		Clock:       clock,
		Random:      random,
		Subprocess:  execSubprocess{},
		AuditLogger: auditLogger,
		ScratchDir:  cfg.Sandbox.ScratchDir,
	}
	registry := tools.BuildRegistry(wiringRuntime)
	dispatcher := tools.NewDispatcher(registry, nil, nil, engine)

	coord := &coordinator.Coordinator{
		Adapter:         adapter,
		Dispatcher:      dispatcher,
		Repo:            repo,
		Clock:           clock,
		Random:          random,
		PlannerModel:    cfg.Coordinator.PlannerModel,
		SpecialistModel: cfg.Coordinator.SpecialistModel,
		SynthesisModel:  cfg.Coordinator.SynthesisModel,
		MaxOutputTokens: cfg.Coordinator.MaxOutputTokens,
	}

	return &app{
		cfg:         cfg,
		repo:        repo,
		adapter:     adapter,
		auditLogger: auditLogger,
		registry:    registry,
		dispatcher:  dispatcher,
		coord:       coord,
	}, nil
}

func buildRepository(cfg Config) (repository.Repository, error) {
	switch cfg.Repository.Driver {
	case "", "memory":
		return repository.NewInMemory(), nil
	default:
		// Postgres/sqlite-backed Repository implementations are an
		// operator-supplied integration in this deployment: the core only
		// defines the Repository contract (internal/repository.Repository)
		// and an in-memory reference implementation for tests/demos.
		return nil, fmt.Errorf("repository driver %q is not built into this binary; only \"memory\" is available", cfg.Repository.Driver)
	}
}

func buildAdapter(cfg Config) (llmadapter.Adapter, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.LLM.APIKey)}
		client := anthropic.NewClient(opts...)
		return llmadapter.NewAnthropicAdapter(&client), nil
	case "openai":
		client := openai.NewClient(cfg.LLM.APIKey)
		return llmadapter.NewOpenAIAdapter(client), nil
	case "bedrock":
		// Bedrock authenticates via the standard AWS credential chain
		// (env vars, shared config, or an attached IAM role), not an
		// API-key config field; cfg.LLM.APIKey is unused for this provider.
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion("us-east-1"),
		)
		if err != nil {
			return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return llmadapter.NewBedrockAdapter(client), nil
	case "google":
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  cfg.LLM.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("google: create client: %w", err)
		}
		return llmadapter.NewGoogleAdapter(client), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want anthropic, openai, bedrock, or google)", cfg.LLM.Provider)
	}
}
