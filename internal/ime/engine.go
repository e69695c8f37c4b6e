package ime

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"henkan/internal/config"
	"henkan/internal/conversion"
	"henkan/internal/converter"
	"henkan/internal/logging"
	"henkan/internal/tracing"
	"henkan/internal/usagestats"
)

var (
	// ErrSessionNotFound is returned for an unknown or deleted session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoKeyEvent is returned for a key event without a key.
	ErrNoKeyEvent = errors.New("no key event")
)

// handle pairs a session with the lock serialising its events.
type handle struct {
	mu      sync.Mutex
	session *Session
}

// Engine owns the sessions of one process. Sessions are addressed by id and
// may be driven from several goroutines; events of one session are
// serialised.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*handle
	cfg      *config.Config

	conv   converter.Converter
	stats  usagestats.Sink
	tracer trace.Tracer
	log    *logging.Logger
	keymap *Keymap
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineStats routes usage counters of every session to sink.
func WithEngineStats(sink usagestats.Sink) EngineOption {
	return func(e *Engine) {
		if sink != nil {
			e.stats = sink
		}
	}
}

// WithTracer opens one span per event.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithEngineLogger replaces the engine logger.
func WithEngineLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithEngineKeymap sets the key bindings of new sessions.
func WithEngineKeymap(k *Keymap) EngineOption {
	return func(e *Engine) {
		if k != nil {
			e.keymap = k
		}
	}
}

// NewEngine creates an engine converting through conv. A nil cfg selects
// the default configuration.
func NewEngine(conv converter.Converter, cfg *config.Config, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		sessions: make(map[string]*handle),
		cfg:      cfg,
		conv:     conv,
		stats:    usagestats.Nop{},
		tracer:   noop.NewTracerProvider().Tracer("henkan/ime"),
		log:      logging.Component("ime"),
		keymap:   DefaultKeymap(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSession starts a session and returns its id.
func (e *Engine) CreateSession() string {
	id := uuid.NewString()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions[id] = &handle{session: NewSession(id, e.conv, e.cfg.Clone(),
		WithStats(e.stats),
		WithLogger(e.log),
		WithKeymap(e.keymap),
	)}
	e.stats.IncrementCount(usagestats.SessionCreated)
	e.log.Info("session created", "session_id", id)
	return id
}

// DeleteSession drops a session.
func (e *Engine) DeleteSession(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(e.sessions, id)
	e.stats.IncrementCount(usagestats.SessionDeleted)
	e.log.Info("session deleted", "session_id", id)
	return nil
}

// Sessions returns the ids of the live sessions in sorted order.
func (e *Engine) Sessions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) lookup(id string) (*handle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// SendKey delivers a key event to a session.
func (e *Engine) SendKey(ctx context.Context, id string, ev KeyEvent) (*Output, error) {
	if !ev.Valid() && !ev.IsModifierOnly() {
		return nil, ErrNoKeyEvent
	}
	return e.handle(ctx, id, "ime.SendKey", func(s *Session) (*Output, error) {
		return s.SendKey(ev)
	}, attribute.String("ime.key.special", ev.Special.String()))
}

// SendCommand delivers a client command to a session.
func (e *Engine) SendCommand(ctx context.Context, id string, cmd SessionCommand) (*Output, error) {
	return e.handle(ctx, id, "ime.SendCommand", func(s *Session) (*Output, error) {
		return s.SendCommand(cmd), nil
	}, attribute.String("ime.command", cmd.Type.String()))
}

func (e *Engine) handle(ctx context.Context, id, name string, fn func(*Session) (*Output, error), attrs ...attribute.KeyValue) (*Output, error) {
	h, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		append(attrs, attribute.String("ime.session_id", id))...,
	))
	defer span.End()

	start := e.now()
	h.mu.Lock()
	h.session.SetContext(logging.ContextWithSessionID(ctx, id))
	out, err := fn(h.session)
	h.session.SetContext(context.Background())
	h.mu.Unlock()

	e.stats.IncrementCount(usagestats.SessionAllEvent)
	e.stats.UpdateTiming(usagestats.ElapsedTimeUSec, e.now().Sub(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.LogAttrs(ctx, slog.LevelWarn, "event failed",
			append(tracing.LogAttrs(ctx), slog.String("session_id", id), slog.String("error", err.Error()))...)
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("ime.consumed", out.Consumed),
		attribute.String("ime.status", out.Status),
	)
	if out.Config != nil {
		e.SetConfig(out.Config.Clone())
	}
	return out, nil
}

// SetCapability declares what the client of a session can do.
func (e *Engine) SetCapability(id string, c conversion.Capability) error {
	h, err := e.lookup(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.SetCapability(c)
	return nil
}

// SetClientContext records the text around the caret of a session.
func (e *Engine) SetClientContext(id string, cc conversion.ClientContext) error {
	h, err := e.lookup(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.SetClientContext(cc)
	return nil
}

// Config returns the configuration new sessions start with.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig replaces the configuration of the engine and every session.
func (e *Engine) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	e.mu.Lock()
	e.cfg = cfg
	handles := make([]*handle, 0, len(e.sessions))
	for _, h := range e.sessions {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		h.session.SetConfig(cfg.Clone())
		h.mu.Unlock()
	}
	e.stats.IncrementCount(usagestats.SetConfig)
	e.log.Debug("config applied", "sessions", len(handles))
}
