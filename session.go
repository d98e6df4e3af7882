// Package sessionvars implements a session-scoped, transactional
// key-value and record store: named packages containing scalar or
// record-table variables, with savepoint-accurate commit/rollback
// semantics that mirror the host transaction's own subtransaction
// nesting. See SPEC_FULL.md for the full design.
package sessionvars

import (
	"github.com/google/uuid"

	"github.com/sessionvars/sessionvars/internal/engine"
	"github.com/sessionvars/sessionvars/log"
)

// Session is a single store instance: one per logical database session,
// holding its own packages, transaction state, and cursor registry. A
// Session is not safe for concurrent use by multiple goroutines, mirroring
// the single-backend-process assumption the spec describes (§5).
type Session struct {
	id     uuid.UUID
	eng    *engine.Engine
	logger log.Logger
}

// Option configures a Session at construction time.
type Option func(*sessionConfig)

type sessionConfig struct {
	convertUnknownOID bool
	maxOpenCursors    int
	logger            log.Logger
	metrics           *Metrics
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		convertUnknownOID: true,
		maxOpenCursors:    64,
		logger:            log.Global(),
	}
}

// WithConvertUnknownOID sets the initial convert_unknownoid setting
// (spec §6 Configuration); default true.
func WithConvertUnknownOID(v bool) Option {
	return func(c *sessionConfig) { c.convertUnknownOID = v }
}

// WithMaxOpenCursors bounds how many concurrent scans the cursor-safety
// registry keeps alive before evicting the least-recently-touched one
// (spec §4.5/§5); default 64.
func WithMaxOpenCursors(n int) Option {
	return func(c *sessionConfig) { c.maxOpenCursors = n }
}

// WithLogger overrides the session's logger; default log.Global().
func WithLogger(l log.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// WithMetrics attaches a Prometheus instrument set the session updates as
// it processes transaction and cursor events.
func WithMetrics(m *Metrics) Option {
	return func(c *sessionConfig) { c.metrics = m }
}

// New returns an empty Session.
func New(opts ...Option) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	var em *engine.Metrics
	if cfg.metrics != nil {
		em = cfg.metrics.inner
	}
	return &Session{
		id:     uuid.New(),
		eng:    engine.New(cfg.convertUnknownOID, cfg.maxOpenCursors, cfg.logger, em),
		logger: cfg.logger,
	}
}

// ID returns the session's identity, generated once at construction.
func (s *Session) ID() uuid.UUID { return s.id }

// ConvertUnknownOID reports the current convert_unknownoid setting.
func (s *Session) ConvertUnknownOID() bool { return s.eng.ConvertUnknownOID() }

// SetConvertUnknownOID updates convert_unknownoid at runtime.
func (s *Session) SetConvertUnknownOID(v bool) { s.eng.SetConvertUnknownOID(v) }

// InTransaction reports whether a top-level transaction is currently
// open.
func (s *Session) InTransaction() bool { return s.eng.CurrentLevel().Nest > 0 }

// Depth reports the current subtransaction nesting depth (0 outside any
// transaction).
func (s *Session) Depth() int { return s.eng.CurrentLevel().Nest }

// Begin opens a top-level transaction.
func (s *Session) Begin() error {
	if s.InTransaction() {
		return InvalidParamError("a transaction is already open")
	}
	s.eng.Begin()
	return nil
}

// Savepoint opens a nested subtransaction within the current transaction.
func (s *Session) Savepoint() error {
	if !s.InTransaction() {
		return InvalidParamError("no transaction is open")
	}
	s.eng.Savepoint()
	return nil
}

// Release commits the innermost open scope: a subtransaction commit if
// one is nested, or the top-level transaction's own commit otherwise.
func (s *Session) Release() error {
	if !s.InTransaction() {
		return InvalidParamError("no transaction is open")
	}
	if s.eng.CurrentLevel().Nest == 1 {
		s.eng.CommitTop()
		return nil
	}
	s.eng.Release()
	return nil
}

// Rollback aborts the innermost open scope: a subtransaction rollback if
// one is nested, or the top-level transaction's own abort otherwise.
func (s *Session) Rollback() error {
	if !s.InTransaction() {
		return InvalidParamError("no transaction is open")
	}
	if s.eng.CurrentLevel().Nest == 1 {
		s.eng.AbortTop()
		return nil
	}
	s.eng.Rollback()
	return nil
}

// RunAutonomous runs fn inside a fresh autonomous transaction scope (spec
// §9): a nested commit scope whose own commit/abort is independent of the
// caller's enclosing transaction. fn receives this same Session with the
// autonomous transaction already begun; fn must not call Begin itself. The autonomous scope auto-commits on a nil return and
// auto-aborts otherwise.
func (s *Session) RunAutonomous(fn func(*Session) error) (err error) {
	s.eng.EnterAutonomous()
	defer s.eng.ExitAutonomous()
	s.eng.Begin()
	defer func() {
		if r := recover(); r != nil {
			s.eng.AbortTop()
			panic(r)
		}
	}()
	if err = fn(s); err != nil {
		s.eng.AbortTop()
		return err
	}
	s.eng.CommitTop()
	return nil
}

// InvalidParamError builds an InvalidParameter *Error, exported so host
// adapters can report argument validation failures through the same
// error family the store itself uses.
func InvalidParamError(format string, args ...any) error {
	return invalidParamf(format, args...)
}
