package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jbuckmccready/dotfiles/internal/config"
	"github.com/jbuckmccready/dotfiles/internal/logging"
)

// Constructor builds a fresh, uninitialized provider.
type Constructor func() Provider

// Registry maps a sandbox type to its constructor. It must contain
// config.TypeDisabled, the fallback for every failure.
type Registry map[config.Type]Constructor

// Notifier receives user-facing notices such as "Sandbox initialized".
type Notifier func(level Level, msg string)

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

func WithSelectorLogger(l *log.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

func WithNotifier(n Notifier) SelectorOption {
	return func(s *Selector) { s.notify = n }
}

// WithNoSandbox forces the disabled provider, as the --no-sandbox flag does.
func WithNoSandbox(on bool) SelectorOption {
	return func(s *Selector) { s.noSandbox = on }
}

// WithConfigLoader replaces config.Load.
func WithConfigLoader(load func(cwd string) (*config.Config, error)) SelectorOption {
	return func(s *Selector) { s.load = load }
}

// WithHome overrides the home directory handed to providers.
func WithHome(home string) SelectorOption {
	return func(s *Selector) { s.home = home }
}

// Selector owns the single live provider of an agent session. Session hooks
// are expected to run sequentially; the mutex only makes concurrent readers
// of Ops and Status safe.
type Selector struct {
	registry  Registry
	load      func(cwd string) (*config.Config, error)
	noSandbox bool
	home      string
	logger    *log.Logger
	notify    Notifier

	mu       sync.RWMutex
	provider Provider
	override *Status
}

// NewSelector creates a Selector whose current provider is an uninitialized
// disabled one.
func NewSelector(registry Registry, opts ...SelectorOption) *Selector {
	if registry[config.TypeDisabled] == nil {
		panic("registry must provide the disabled sandbox")
	}
	s := &Selector{registry: registry, load: config.Load}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).WithPrefix("sandbox")
	if s.notify == nil {
		s.notify = func(level Level, msg string) {
			s.logger.Log(logLevel(level), msg)
		}
	}
	if s.home == "" {
		s.home, _ = os.UserHomeDir()
	}
	s.provider = registry[config.TypeDisabled]()
	return s
}

// SessionStart loads the configuration for cwd and initializes the chosen
// provider, replacing the previous one. It never fails: every problem falls
// back to the disabled provider with an error status or notice.
func (s *Selector) SessionStart(ctx context.Context, cwd string) {
	s.shutdownCurrent(ctx)

	cfg, err := s.load(cwd)
	if err != nil {
		s.logger.Error("config load failed", "cwd", cwd, "err", err)
		s.fallback(ctx, cwd, config.DefaultConfig())
		s.setOverride(&Status{Level: LevelError, Text: "⚠ Sandbox: config error — " + err.Error()})
		return
	}

	switch {
	case s.noSandbox:
		s.fallback(ctx, cwd, cfg)
		s.notify(LevelWarning, "Sandbox disabled via --no-sandbox")
		return
	case !cfg.IsEnabled() || cfg.Type == config.TypeDisabled:
		s.fallback(ctx, cwd, cfg)
		s.notify(LevelInfo, "Sandbox disabled via config")
		return
	}

	newProvider, ok := s.registry[cfg.Type]
	if !ok {
		s.fallback(ctx, cwd, cfg)
		s.notify(LevelError, fmt.Sprintf("Sandbox initialization failed: sandbox type %q is not available", cfg.Type))
		return
	}

	p := newProvider()
	s.logger.Debug("initializing provider", "type", cfg.Type, "provider", p.Name(), "cwd", cwd)
	if err := p.Init(ctx, s.initContext(cwd, cfg)); err != nil {
		s.logger.Error("provider init failed", "provider", p.Name(), "err", err)
		// a half-initialized provider may hold processes
		if serr := p.Shutdown(ctx); serr != nil {
			s.logger.Debug("shutdown after failed init", "err", serr)
		}
		failed := p.Status()
		s.fallback(ctx, cwd, cfg)
		if failed.Level == LevelError {
			s.setOverride(&failed)
		}
		s.notify(LevelError, "Sandbox initialization failed: "+err.Error())
		return
	}

	s.swap(p, nil)
	s.notify(LevelInfo, initNotice(cfg.Type))
}

func initNotice(t config.Type) string {
	switch t {
	case config.TypeVM:
		return "VM sandbox initialized"
	case config.TypeContainer:
		return "Container sandbox initialized"
	default:
		return "Sandbox initialized"
	}
}

// SessionShutdown releases the current provider.
func (s *Selector) SessionShutdown(ctx context.Context) error {
	s.mu.RLock()
	p := s.provider
	s.mu.RUnlock()
	return p.Shutdown(ctx)
}

// IsActive reports whether the current provider isolates anything.
func (s *Selector) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider.IsActive()
}

// Ops returns the operations of the current provider.
func (s *Selector) Ops() Ops {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider.Ops()
}

// UserBash returns the shell used for commands the user types directly.
func (s *Selector) UserBash() BashOps {
	return s.Ops().Bash
}

// BeforeAgentStart patches the agent system prompt for the current provider.
func (s *Selector) BeforeAgentStart(prompt string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider.PatchSystemPrompt(prompt)
}

// Describe returns the "show sandbox configuration" text.
func (s *Selector) Describe() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.provider.IsActive() {
		return "Sandbox is disabled"
	}
	return strings.Join(s.provider.Describe(), "\n")
}

// Status returns the status line of the current provider.
func (s *Selector) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.override != nil {
		return *s.override
	}
	return s.provider.Status()
}

// Provider returns the current provider.
func (s *Selector) Provider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Selector) initContext(cwd string, cfg *config.Config) InitContext {
	return InitContext{Cwd: cwd, Home: s.home, Config: cfg, Logger: s.logger}
}

func (s *Selector) fallback(ctx context.Context, cwd string, cfg *config.Config) {
	p := s.registry[config.TypeDisabled]()
	if err := p.Init(ctx, s.initContext(cwd, cfg)); err != nil {
		s.logger.Error("disabled sandbox init failed", "err", err)
	}
	s.swap(p, nil)
}

func (s *Selector) shutdownCurrent(ctx context.Context) {
	s.mu.RLock()
	p := s.provider
	s.mu.RUnlock()
	if err := p.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown of previous provider failed", "provider", p.Name(), "err", err)
	}
}

func (s *Selector) swap(p Provider, override *Status) {
	s.mu.Lock()
	s.provider = p
	s.override = override
	s.mu.Unlock()
}

func (s *Selector) setOverride(st *Status) {
	s.mu.Lock()
	s.override = st
	s.mu.Unlock()
}

func logLevel(l Level) log.Level {
	switch l {
	case LevelWarning:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	case LevelMuted:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}
