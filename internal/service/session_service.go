package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/auth"
	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/middleware"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/realtime"
	"github.com/mmynk/tabsplit/internal/receipt"
	"github.com/mmynk/tabsplit/internal/sessioncode"
	"github.com/mmynk/tabsplit/internal/storage"
	"github.com/mmynk/tabsplit/internal/telemetry"
)

const (
	defaultStoreRetries    = 3
	defaultStoreRetryBase  = 50 * time.Millisecond
	defaultMaxReceiptBytes = 10 << 20

	// maxCodeAttempts bounds join code regeneration on collisions.
	maxCodeAttempts = 5
)

var (
	invariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabsplit_engine_invariant_violations_total",
		Help: "Engine mutations rejected by an invariant check, by operation.",
	}, []string{"op"})

	storeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabsplit_store_retries_total",
		Help: "Store writes retried after a transient failure.",
	})
)

// SessionService implements the session RPCs and the receipt upload.
//
// Every mutation holds the session's lock while it loads the state, runs the
// engine, persists the resulting changes and publishes them, so events of
// one session are published in the order they were stored.
type SessionService struct {
	store      storage.Store
	hub        *realtime.Hub
	tokens     *auth.TokenManager
	recognizer receipt.Recognizer
	locks      *sessionLocks

	retries         uint64
	retryBase       time.Duration
	maxReceiptBytes int64
	newCode         func() (string, error)
	engineOpts      []engine.Option
	tracer          trace.Tracer
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithRecognizer sets the receipt recognizer (default: receipt.StubRecognizer).
func WithRecognizer(r receipt.Recognizer) Option {
	return func(s *SessionService) { s.recognizer = r }
}

// WithStoreRetry sets how often, and with which base delay, a failed store
// write is retried.
func WithStoreRetry(retries uint64, base time.Duration) Option {
	return func(s *SessionService) {
		s.retries = retries
		s.retryBase = base
	}
}

// WithMaxReceiptBytes limits the size of uploaded receipt images.
func WithMaxReceiptBytes(n int64) Option {
	return func(s *SessionService) { s.maxReceiptBytes = n }
}

// WithCodeGenerator overrides join code generation.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *SessionService) { s.newCode = fn }
}

// WithEngineOptions passes options to every engine the service creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *SessionService) { s.engineOpts = append(s.engineOpts, opts...) }
}

// NewSessionService creates a SessionService.
func NewSessionService(store storage.Store, hub *realtime.Hub, tokens *auth.TokenManager, opts ...Option) *SessionService {
	s := &SessionService{
		store:           store,
		hub:             hub,
		tokens:          tokens,
		recognizer:      receipt.StubRecognizer{},
		locks:           newSessionLocks(),
		retries:         defaultStoreRetries,
		retryBase:       defaultStoreRetryBase,
		maxReceiptBytes: defaultMaxReceiptBytes,
		newCode:         sessioncode.Generate,
		tracer:          telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionService) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "SessionService."+name,
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// newEngine wraps a loaded state, counting invariant violations.
func (s *SessionService) newEngine(state *models.SessionState) *engine.Engine {
	opts := append([]engine.Option{
		engine.WithViolationHook(func(op string, err error) {
			invariantViolations.WithLabelValues(op).Inc()
		}),
	}, s.engineOpts...)
	return engine.New(state, opts...)
}

// loadState reads a session, mapping a missing row to a NotFound error.
func (s *SessionService) loadState(ctx context.Context, sessionID string) (*models.SessionState, error) {
	if sessionID == "" {
		return nil, apperrors.Validation("session_id", "is required")
	}
	state, err := s.store.LoadState(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NotFound("session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return state, nil
}

// mutation is the result of a committed and published engine operation.
type mutation struct {
	state   *models.SessionState
	changes []models.Change
	event   models.Event
}

// mutate runs fn against the session's current state and persists and
// publishes the changes it returns. When caller is non-nil it must still be
// a participant of the session.
func (s *SessionService) mutate(ctx context.Context, sessionID, op string, caller *auth.Claims, fn func(e *engine.Engine) ([]models.Change, error)) (m *mutation, err error) {
	ctx, span := s.startSpan(ctx, op, sessionID)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if caller != nil {
		if _, ok := state.Participant(caller.ParticipantID); !ok {
			return nil, apperrors.PermissionDenied("caller is no longer a participant of this session")
		}
	}

	e := s.newEngine(state)
	changes, err := fn(e)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("changes", len(changes)))

	if err := s.persist(ctx, op, changes); err != nil {
		return nil, err
	}

	after := e.State()
	event := s.hub.Publish(sessionID, changes, realtime.ItemAssignments(after, changes))
	return &mutation{state: after, changes: changes, event: event}, nil
}

// persist applies changes to the store, retrying transient failures with
// exponential backoff. Missing rows and constraint conflicts are not
// retried.
func (s *SessionService) persist(ctx context.Context, op string, changes []models.Change) error {
	if len(changes) == 0 {
		return nil
	}

	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.store.Apply(ctx, changes)
		if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrConflict) {
			return err
		}
		storeRetries.Inc()
		slog.Warn("Store apply failed",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		slog.Error("Failed to persist changes",
			"op", op,
			"attempts", attempt,
			"error", err,
		)
		return apperrors.Sync(op, err)
	}
	return nil
}

// requireMember returns the caller's claims if they hold a token for
// sessionID.
func requireMember(ctx context.Context, sessionID string) (*auth.Claims, error) {
	claims := middleware.GetClaims(ctx)
	if claims == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	if claims.SessionID != sessionID {
		return nil, apperrors.PermissionDenied("token belongs to another session")
	}
	return claims, nil
}

// requireOwner is requireMember restricted to the session owner.
func requireOwner(ctx context.Context, sessionID string) (*auth.Claims, error) {
	claims, err := requireMember(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !claims.Owner {
		return nil, apperrors.PermissionDenied("only the session owner can do this")
	}
	return claims, nil
}

// CreateSession starts a session owned by the caller and returns the
// owner's token.
func (s *SessionService) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (resp *connect.Response[JoinResponse], err error) {
	slog.Info("CreateSession request", "owner_name", req.Msg.OwnerName)
	ctx, span := s.startSpan(ctx, "CreateSession", "")
	defer func() { endSpan(span, err) }()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		e, changes, err := engine.NewSession(code, req.Msg.OwnerName, s.engineOpts...)
		if err != nil {
			return nil, apperrors.ToConnect(err)
		}
		state := e.State()

		err = s.store.CreateSession(ctx, state)
		if errors.Is(err, storage.ErrConflict) {
			slog.Warn("Join code collision, retrying", "code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			slog.Error("Failed to create session", "error", err)
			return nil, apperrors.ToConnect(apperrors.Sync("create_session", err))
		}

		owner, _ := state.Participant(state.Session.OwnerID)
		token, err := s.tokens.Generate(owner)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		event := s.hub.Publish(state.Session.ID, changes, nil)
		span.SetAttributes(attribute.String("session.id", state.Session.ID))

		slog.Info("Session created",
			"session_id", state.Session.ID,
			"code", state.Session.Code,
			"owner_id", owner.ID,
		)
		return connect.NewResponse(&JoinResponse{
			Session:     state.Session,
			Participant: owner,
			Token:       token,
			Seq:         event.Seq,
		}), nil
	}
	return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("could not allocate a unique join code"))
}

// JoinSession adds the caller to the session with the given join code.
func (s *SessionService) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[JoinResponse], error) {
	slog.Info("JoinSession request", "code", req.Msg.Code, "name", req.Msg.Name)

	code, err := sessioncode.Normalize(req.Msg.Code)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}
	session, err := s.store.GetSessionByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ToConnect(apperrors.NotFound("session", code))
	}
	if err != nil {
		slog.Error("Failed to look up session", "code", code, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	var joined models.Participant
	m, err := s.mutate(ctx, session.ID, "join_session", nil, func(e *engine.Engine) ([]models.Change, error) {
		p, changes, err := e.AddParticipant(req.Msg.Name)
		joined = p
		return changes, err
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	token, err := s.tokens.Generate(joined)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	slog.Info("Participant joined",
		"session_id", session.ID,
		"participant_id", joined.ID,
	)
	return connect.NewResponse(&JoinResponse{
		Session:     m.state.Session,
		Participant: joined,
		Token:       token,
		Seq:         m.event.Seq,
	}), nil
}

// snapshot loads a session under its lock together with the sequence number
// of the session's last event published before the load.
func (s *SessionService) snapshot(ctx context.Context, sessionID string) (*models.SessionState, int64, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	seq := s.hub.LastSeq(sessionID)
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return state, seq, nil
}
