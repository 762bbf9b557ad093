package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fixpoint/internal/agent"
	"fixpoint/internal/agent/domain"
	"fixpoint/internal/agent/ports"
	"fixpoint/internal/checkpoint"
	"fixpoint/internal/config"
	"fixpoint/internal/consent"
	"fixpoint/internal/danger"
	fixerrors "fixpoint/internal/errors"
	"fixpoint/internal/llm"
	"fixpoint/internal/shared/logging"
	"fixpoint/internal/shared/utils/id"
	"fixpoint/internal/toolregistry"
	"fixpoint/internal/tools/builtin"
	"fixpoint/internal/verify"
)

// runtime bundles everything one task execution needs.
type runtime struct {
	engine       *domain.Engine
	services     domain.Services
	consentStore ports.ConsentStore
	servers      *builtin.ServerManager
	cfg          *config.Config
}

func runTask(ctx context.Context, cfg *config.Config, flags *cliFlags, request string) error {
	workspace, err := resolveWorkspace(flags)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, workspace)
	if err != nil {
		return err
	}
	defer rt.servers.StopAll()

	tier, err := resolveComplexity(flags.complexity, request)
	if err != nil {
		return err
	}

	tc := domain.NewTaskContext(id.NewTaskID(), request, workspace, tier, time.Now())
	tc.SessionID = id.NewSessionID()
	tc.UserID = cfg.UserID
	if flags.longRunning {
		tc.LongRunning = true
		tc.CheckpointInterval = cfg.CheckpointInterval
	}

	return executeAndRender(ctx, rt, tc, flags)
}

// executeAndRender runs the engine with a renderer goroutine draining the
// event stream. The renderer also resolves consent requests interactively.
func executeAndRender(ctx context.Context, rt *runtime, tc *domain.TaskContext, flags *cliFlags) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener, events := domain.StreamListener(128)
	rt.engine.SetEventListener(listener)

	renderer := newRenderer(rt.consentStore, rt.cfg.Verbose, flags.yes)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			renderer.Render(ctx, event)
		}
	}()

	result, err := rt.engine.ExecuteTask(ctx, tc, rt.services)
	<-done
	if err != nil {
		return err
	}
	if result.Status != domain.StatusCompleted {
		return fmt.Errorf("task %s: %s", result.Status, result.StopReason)
	}
	return nil
}

func buildRuntime(cfg *config.Config, workspace string) (*runtime, error) {
	client, err := llm.NewOpenAIClient(cfg.Model, llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.LLMTimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("create inference client: %w", err)
	}
	retryCfg := fixerrors.DefaultRetryConfig()
	if cfg.LLMMaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.LLMMaxRetries
	}
	client = llm.WrapWithRetry(client, retryCfg)

	ws, err := builtin.NewWorkspace(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	servers := builtin.NewServerManager()
	registry, err := toolregistry.NewDefaultRegistry(ws, servers, toolregistry.CacheConfig{
		MaxSize: cfg.ToolCacheSize,
		TTL:     cfg.ToolCacheTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	consentStore := consent.NewMemoryStore()
	prefs := consent.NewFilePreferenceStore(cfg.PreferencePath)
	audit := consent.NewAuditLog(cfg.AuditLogPath)
	guard := consent.NewBroker(consentStore, prefs, danger.NewBackupper(), audit, consent.BrokerConfig{
		TTL:          cfg.ConsentTTL(),
		PollInterval: cfg.ConsentPoll(),
	})

	checkpoints, err := checkpoint.NewFileStore(cfg.CheckpointDir)
	if err != nil {
		return nil, err
	}

	engine := domain.NewEngine(domain.EngineConfig{
		Logger:              logging.NewEngineLogger("engine"),
		Metrics:             agent.DefaultMetrics(),
		MaxToolConcurrency:  cfg.ToolMaxConcurrent,
		PromptTimeout:       cfg.PromptTimeout(),
		VerificationEnabled: cfg.VerificationEnabled,
		SystemPrompt:        buildSystemPrompt(workspace),
		Completion: domain.CompletionDefaults{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			TopP:        cfg.TopP,
		},
	})

	return &runtime{
		engine: engine,
		services: domain.Services{
			LLM:         client,
			Tools:       registry,
			Guard:       guard,
			Verifier:    verify.New(),
			Checkpoints: checkpoints,
			Prompter:    newInteractivePrompter(),
		},
		consentStore: consentStore,
		servers:      servers,
		cfg:          cfg,
	}, nil
}

func resolveComplexity(forced, request string) (domain.ComplexityTier, error) {
	switch strings.ToLower(strings.TrimSpace(forced)) {
	case "":
		return domain.EstimateComplexity(request), nil
	case "simple":
		return domain.ComplexitySimple, nil
	case "medium":
		return domain.ComplexityMedium, nil
	case "complex":
		return domain.ComplexityComplex, nil
	case "enterprise":
		return domain.ComplexityEnterprise, nil
	default:
		return "", fmt.Errorf("unknown complexity tier %q", forced)
	}
}

func buildSystemPrompt(workspace string) string {
	var b strings.Builder
	b.WriteString("You are fixpoint, an autonomous coding assistant.\n")
	fmt.Fprintf(&b, "Working directory: %s\n", workspace)
	b.WriteString("Make changes with the provided tools, then rely on the automatic\n")
	b.WriteString("verification results to decide whether more fixes are needed.\n")
	b.WriteString("Prefer small, reviewable edits. Never rerun a command that just\n")
	b.WriteString("failed without changing something first.")
	return b.String()
}
