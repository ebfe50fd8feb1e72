// Package workflow sequences a prescription authoring session through its
// three stages (intake, selection, assembly), gates forward moves on
// readiness and runs the asynchronous suggestion fetch on every entry into
// selection.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/domain/assembly"
	"github.com/rxdesk/rxdesk/internal/domain/intake"
	"github.com/rxdesk/rxdesk/internal/domain/selection"
	"github.com/rxdesk/rxdesk/internal/platform/export"
	"github.com/rxdesk/rxdesk/internal/platform/render"
	"github.com/rxdesk/rxdesk/internal/platform/suggest"
	"github.com/rxdesk/rxdesk/internal/platform/websocket"
)

// Stage is a step of the authoring flow.
type Stage string

const (
	StageIntake    Stage = "intake"
	StageSelection Stage = "selection"
	StageAssembly  Stage = "assembly"
)

var (
	ErrWrongStage      = errors.New("operation not available in the current stage")
	ErrNoDocument      = errors.New("no document has been assembled")
	ErrSessionNotFound = errors.New("session not found")
)

// Exporter dispatches an assembled document.
type Exporter interface {
	Export(ctx context.Context, sessionID string, doc *assembly.Document, format render.Format, action export.Action) (*export.Result, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Suggest      suggest.Client
	Events       websocket.EventPublisher
	Exporter     Exporter
	Logger       zerolog.Logger
	FetchTimeout time.Duration
}

// Controller owns one session. All methods are safe for concurrent use; the
// suggestion fetch completes on its own goroutine and re-enters through the
// same lock.
type Controller struct {
	mu sync.Mutex

	id       string
	stage    Stage
	intake   *intake.Intake
	engine   *selection.Engine
	doctor   assembly.Doctor
	document *assembly.Document

	deps        Deps
	logger      zerolog.Logger
	cancelFetch context.CancelFunc
	fetchDone   chan struct{}
	lastActive  time.Time
	now         func() time.Time
}

// NewController starts a session in the intake stage.
func NewController(id string, deps Deps) *Controller {
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = 60 * time.Second
	}
	c := &Controller{
		id:     id,
		stage:  StageIntake,
		intake: intake.New(),
		engine: selection.NewEngine(),
		deps:   deps,
		logger: deps.Logger.With().Str("session_id", id).Logger(),
		now:    time.Now,
	}
	c.lastActive = c.now()
	return c
}

func (c *Controller) ID() string { return c.id }

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

// Advance moves to the next stage when the current one is ready. When it is
// not, nothing changes and the blocking reasons are returned.
func (c *Controller) Advance() (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	if reasons := c.blockersLocked(); len(reasons) > 0 {
		return false, reasons
	}
	switch c.stage {
	case StageIntake:
		c.enterLocked(StageSelection)
	case StageSelection:
		c.enterLocked(StageAssembly)
	}
	return true, nil
}

// Retreat moves to the previous stage unconditionally. All state is kept.
// It reports false when already at the first stage.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	switch c.stage {
	case StageSelection:
		c.stopFetchLocked()
		c.engine.AbandonFetch()
		c.enterLocked(StageIntake)
	case StageAssembly:
		c.enterLocked(StageSelection)
	default:
		return false
	}
	return true
}

// Reset discards every entity of the session and returns to intake.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.stopFetchLocked()
	c.intake = intake.New()
	c.engine.ClearCurated()
	c.doctor = assembly.Doctor{}
	c.document = nil
	c.stage = StageIntake
	c.logger.Info().Msg("session reset")
	c.publish(websocket.EventSessionReset, nil)
	c.publish(websocket.EventStageChanged, map[string]Stage{"stage": c.stage})
}

// Close cancels any outstanding fetch. The controller must not be used
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopFetchLocked()
	c.engine.AbandonFetch()
}

func (c *Controller) blockersLocked() []string {
	switch c.stage {
	case StageIntake:
		var reasons []string
		for _, err := range c.intake.Problems() {
			reasons = append(reasons, err.Error())
		}
		return reasons
	case StageSelection:
		if !c.engine.Ready() {
			return []string{"medicines: select or add at least one medicine"}
		}
		return nil
	default:
		return []string{"assembly is the final stage"}
	}
}

func (c *Controller) enterLocked(s Stage) {
	prev := c.stage
	c.stage = s
	c.logger.Info().Str("from", string(prev)).Str("to", string(s)).Msg("stage changed")
	c.publish(websocket.EventStageChanged, map[string]Stage{"stage": s, "previous": prev})
	if s == StageSelection {
		c.startFetchLocked()
	}
}

func (c *Controller) requireStage(s Stage) error {
	if c.stage != s {
		return ErrWrongStage
	}
	return nil
}

func (c *Controller) touch() { c.lastActive = c.now() }

// IdleSince reports the time of the last operation.
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// publish must not block: the hub drops events for slow clients.
func (c *Controller) publish(eventType string, payload any) {
	if c.deps.Events == nil {
		return
	}
	if err := c.deps.Events.Publish(context.Background(), websocket.NewEvent(eventType, c.id, payload)); err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("publish session event")
	}
}
