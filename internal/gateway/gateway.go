// Package gateway wires the runtime together: configuration in,
// providers, tools, skills, sessions, router, scheduler, and channel
// adapters out, running until the context ends.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projectuberman28-hub/openclaw-sub001/internal/agent"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/channels"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/config"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/cron"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/eventlog"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/forge"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/hooks"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/metrics"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/provider"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/router"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/sandbox"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/sessions"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/skills"
	"github.com/projectuberman28-hub/openclaw-sub001/internal/tools"
	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// archiveSweepInterval is how often idle sessions are archived.
const archiveSweepInterval = 15 * time.Minute

// Gateway owns the wired runtime.
type Gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	events    *eventlog.Log
	metrics   *metrics.Metrics
	providers *provider.Registry
	toolReg   *tools.Registry
	executor  *tools.Executor
	skillReg  *skills.Registry
	binder    *skills.Binder
	watcher   *skills.Watcher
	sessions  *sessions.Store
	facts     *sessions.Facts
	hooks     *hooks.Manager
	assembler *agent.Assembler
	engine    *agent.Engine
	router    *router.Router
	scheduler *cron.Scheduler
	requests  *requestLog
	adapters  map[models.ChannelType]channels.Adapter

	chainMu sync.Mutex
	chains  map[string]*provider.Chain

	boundMu sync.Mutex
	bound   map[string]bool
}

// New builds the runtime from a validated config. Nothing is started;
// call Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:      cfg,
		logger:   logger.With("component", "gateway"),
		chains:   make(map[string]*provider.Chain),
		bound:    make(map[string]bool),
		adapters: make(map[models.ChannelType]channels.Adapter),
		requests: newRequestLog(),
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	events, err := eventlog.Open(cfg.Storage.EventLog, eventlog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	g.events = events

	g.metrics = metrics.NewMetrics()

	g.providers = provider.NewRegistry()
	if err := g.registerProviders(); err != nil {
		return nil, err
	}

	// Tools: builtins plus sandbox-bound skill tools.
	g.toolReg = tools.NewRegistry()
	if err := tools.RegisterBuiltins(g.toolReg); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	g.executor = tools.NewExecutor(g.toolReg,
		tools.WithRecorder(events),
		tools.WithLogger(logger),
		tools.WithExecutedFunc(g.metrics.ToolExecuted),
	)

	runner := sandbox.NewRunner(sandbox.WithLogger(logger))
	g.binder = skills.NewBinder(runner, logger)
	dirs := skills.Dirs{
		Bundled:    cfg.Storage.Skills.Bundled,
		Curated:    cfg.Storage.Skills.Curated,
		Forged:     cfg.Storage.Skills.Forged,
		Quarantine: cfg.Storage.Skills.Quarantine,
	}
	loader := skills.NewLoader(dirs, skills.WithLoaderLogger(logger))
	g.skillReg = skills.NewRegistry(loader)
	g.skillReg.OnSwap(func(set []skills.Skill) {
		g.boundMu.Lock()
		defer g.boundMu.Unlock()
		g.binder.Sync(g.toolReg, g.bound, set)
	})
	if err := g.skillReg.Refresh(); err != nil {
		g.logger.Warn("initial skill load failed", "error", err)
	}
	g.watcher = skills.NewWatcher(g.skillReg, dirs, logger)

	g.sessions = sessions.NewStore(sessions.WithStoreLogger(logger))
	facts, err := sessions.OpenFacts(cfg.Storage.Facts, logger)
	if err != nil {
		return nil, fmt.Errorf("open facts store: %w", err)
	}
	g.facts = facts

	g.hooks = hooks.NewManager(hooks.WithLogger(logger))
	g.assembler = agent.NewAssembler(g.toolReg, agent.WithFacts(facts))
	g.engine = agent.NewEngine(g.assembler, g.resolveChain, g.executor, g.hooks,
		agent.WithRecorder(events),
		agent.WithLogger(logger),
		agent.WithTurnObserver(func(outcome agent.State, d time.Duration) {
			g.metrics.TurnFinished(string(outcome), d)
		}),
	)

	g.router = router.New(
		router.BindingFunc(g.resolveBinding),
		router.ProcessorFunc(g.process),
		router.WithRecorder(events),
		router.WithLogger(logger),
		router.WithCounters(g.metrics.MessageRouted, g.metrics.MessageDropped),
	)

	g.scheduler = cron.NewScheduler(
		cron.WithLogger(logger),
		cron.WithDispatcher(g.router),
		cron.WithRecorder(events),
	)
	if err := g.registerTasks(runner); err != nil {
		return nil, err
	}

	if err := g.buildAdapters(logger); err != nil {
		return nil, err
	}
	return g, nil
}

// registerProviders fills the provider registry from config.
func (g *Gateway) registerProviders() error {
	for _, pc := range g.cfg.Providers {
		cfg := provider.Config{
			Name:     pc.Name,
			BaseURL:  pc.BaseURL,
			APIKey:   pc.APIKey,
			Model:    pc.Model,
			Priority: pc.Priority,
			Logger:   g.logger,
		}
		var p provider.Provider
		switch pc.Type {
		case "anthropic":
			p = provider.NewAnthropic(cfg)
		case "openai":
			p = provider.NewOpenAI(cfg)
		case "ollama":
			p = provider.NewOllama(cfg)
		default:
			return fmt.Errorf("provider %q: unknown type %q", pc.Name, pc.Type)
		}
		if err := g.providers.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// resolveChain returns the agent's fallback chain, building it on first
// use. Chains are immutable; a config reload builds a new gateway.
func (g *Gateway) resolveChain(a models.AgentConfig) (agent.Chain, error) {
	g.chainMu.Lock()
	defer g.chainMu.Unlock()
	if chain, ok := g.chains[a.ID]; ok {
		return chain, nil
	}
	chain, err := g.providers.BuildChain(a.ID, a.ModelRefs(),
		provider.WithChainLogger(g.logger),
		provider.WithFallbackHook(func(from, to, reason string) {
			g.metrics.ProviderFallback(from, to)
		}),
	)
	if err != nil {
		return nil, err
	}
	g.chains[a.ID] = chain
	return chain, nil
}

// resolveBinding maps an inbound message to its agent: channel binding
// first, then the default agent.
func (g *Gateway) resolveBinding(msg models.ChannelMessage) (models.AgentConfig, error) {
	if id, ok := g.cfg.Bindings[string(msg.Channel)]; ok {
		if a, ok := g.cfg.AgentByID(id); ok {
			return a, nil
		}
		return models.AgentConfig{}, fmt.Errorf("binding for %s references unknown agent %q", msg.Channel, id)
	}
	if a, ok := g.cfg.AgentByID(g.cfg.DefaultAgent); ok {
		return a, nil
	}
	return models.AgentConfig{}, fmt.Errorf("no agent bound for channel %s", msg.Channel)
}

// buildAdapters creates the enabled channel adapters.
func (g *Gateway) buildAdapters(logger *slog.Logger) error {
	if g.cfg.Channels.Console.Enabled {
		g.adapters[models.ChannelConsole] = channels.NewConsole(os.Stdin, os.Stdout, logger)
	}
	if g.cfg.Channels.Telegram.Enabled {
		tg, err := channels.NewTelegram(channels.TelegramConfig{
			Token:  g.cfg.Channels.Telegram.Token,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("telegram adapter: %w", err)
		}
		g.adapters[models.ChannelTelegram] = tg
	}
	return nil
}

// registerTasks adds config tasks, the session archiver, and the forge
// sweep to the scheduler.
func (g *Gateway) registerTasks(runner *sandbox.Runner) error {
	for _, tc := range g.cfg.Tasks {
		var (
			schedule cron.Schedule
			err      error
		)
		if tc.Cron != "" {
			schedule, err = cron.ParseCron(tc.Cron, tc.Timezone)
		} else {
			schedule, err = cron.Interval(tc.Every)
		}
		if err != nil {
			return fmt.Errorf("task %q: %w", tc.ID, err)
		}
		msg := models.ChannelMessage{
			Channel: models.ChannelCron,
			Sender:  tc.ID,
			Content: tc.Message,
		}
		handler := func(ctx context.Context, t *cron.TaskContext) error {
			m := msg
			m.Timestamp = t.FireAt
			return t.Execute(m)
		}
		if err := g.scheduler.Add(tc.ID, tc.Name, schedule, g.instrumentTask(handler)); err != nil {
			return err
		}
	}

	archive, err := cron.Interval(archiveSweepInterval)
	if err != nil {
		return err
	}
	if err := g.scheduler.Add("sessions.archive", "archive idle sessions", archive, g.instrumentTask(g.archiveIdle)); err != nil {
		return err
	}

	if g.cfg.Forge.Enabled {
		detector := forge.NewDetector(g.skillReg)
		gate := forge.NewGate(runner, g.events,
			g.cfg.Storage.Skills.Forged, g.cfg.Storage.Skills.Quarantine,
			forge.WithGateLogger(g.logger),
			forge.WithRegistry(g.skillReg),
		)
		sweeper := forge.NewSweeper(g.events, detector, g.events,
			forge.WithRequests(g.requests),
			forge.WithGate(gate, g.buildDir()),
			forge.WithLookback(g.cfg.Forge.Lookback),
			forge.WithMinConfidence(g.cfg.Forge.MinConfidence),
			forge.WithSweeperLogger(g.logger),
		)
		schedule, err := cron.ParseCron(g.cfg.Forge.Cron, "")
		if err != nil {
			return fmt.Errorf("forge sweep schedule: %w", err)
		}
		if err := g.scheduler.Add("forge.sweep", "capability gap sweep", schedule, g.instrumentTask(sweeper.Task())); err != nil {
			return err
		}
	}
	return nil
}

// instrumentTask counts task completions by status.
func (g *Gateway) instrumentTask(h cron.Handler) cron.Handler {
	return func(ctx context.Context, t *cron.TaskContext) error {
		err := h(ctx, t)
		if err != nil {
			g.metrics.TaskRun("error")
		} else {
			g.metrics.TaskRun("completed")
		}
		return err
	}
}

func (g *Gateway) buildDir() string {
	return g.cfg.Storage.DataDir + "/skills/build"
}

// archiveIdle retires idle sessions and distills their transcripts into
// the facts store.
func (g *Gateway) archiveIdle(context.Context, *cron.TaskContext) error {
	for _, s := range g.sessions.ArchiveIdle() {
		facts := agent.ExtractFacts(s.Messages)
		if len(facts) == 0 {
			continue
		}
		if err := g.facts.Add(s.Channel, s.Sender, facts); err != nil {
			g.logger.Warn("facts save failed", "session", s.ID, "error", err)
		}
	}
	return nil
}

// Run starts everything and blocks until ctx is cancelled, then shuts
// down in reverse order. Adapters drain before the router closes.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	for _, a := range g.adapters {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("start %s adapter: %w", a.Type(), err)
		}
		wg.Add(1)
		go func(a channels.Adapter) {
			defer wg.Done()
			g.pump(a)
		}(a)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := g.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Warn("skill watcher stopped", "error", err)
		}
	}()

	g.scheduler.Start(ctx)

	var metricsSrv *http.Server
	if g.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(g.metrics.Registry(), promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: g.cfg.Metrics.Addr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	g.logger.Info("gateway running",
		"agents", len(g.cfg.Agents),
		"adapters", len(g.adapters),
		"tasks", len(g.scheduler.Tasks()))

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, a := range g.adapters {
		if err := a.Stop(shutdownCtx); err != nil {
			g.logger.Warn("adapter stop failed", "adapter", a.Type(), "error", err)
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	g.scheduler.Stop()
	wg.Wait()
	g.router.Close()
	return g.events.Close()
}

// pump feeds one adapter's inbound stream into the router.
func (g *Gateway) pump(a channels.Adapter) {
	for msg := range a.Messages() {
		if err := g.router.Dispatch(msg); err != nil {
			g.logger.Warn("dispatch failed",
				"channel", msg.Channel,
				"sender", msg.Sender,
				"error", err)
		}
	}
}

// Events exposes the event log for CLI queries.
func (g *Gateway) Events() *eventlog.Log { return g.events }

// Skills exposes the skill registry.
func (g *Gateway) Skills() *skills.Registry { return g.skillReg }

// Hooks exposes the hook manager for embedders.
func (g *Gateway) Hooks() *hooks.Manager { return g.hooks }
