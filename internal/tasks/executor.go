package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/agentdesk/internal/logging"
)

// Asker answers a single message.
type Asker interface {
	Ask(ctx context.Context, message string) (string, error)
}

// ErrNotCancelable is returned when canceling a finished task.
var ErrNotCancelable = errors.New("task cannot be canceled")

// ErrContinueTerminal is returned when a message targets a finished task.
var ErrContinueTerminal = errors.New("task is in a terminal state")

// Executor runs agent turns as A2A tasks.
type Executor struct {
	card  AgentCard
	agent Asker
	store Store
	log   *logging.Logger
	now   func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewExecutor creates an executor for agent.
func NewExecutor(card AgentCard, agent Asker, store Store, log *logging.Logger) *Executor {
	return &Executor{
		card:    card,
		agent:   agent,
		store:   store,
		log:     log.Sub("tasks"),
		now:     func() time.Time { return time.Now().UTC() },
		running: make(map[string]context.CancelFunc),
	}
}

// Card returns the agent card.
func (e *Executor) Card() AgentCard { return e.card }

func (e *Executor) setStatus(t *Task, state State, msg *Message) {
	t.Status = Status{State: state, Message: msg, Timestamp: e.now()}
}

// Send runs msg through the agent. A message naming an existing task
// continues it; otherwise a new task is created. Agent failures end the
// task in the failed state and are not returned as errors.
func (e *Executor) Send(ctx context.Context, msg Message) (*Task, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	msg.Kind = "message"
	if msg.Role == "" {
		msg.Role = RoleUser
	}

	var t *Task
	if msg.TaskID != "" {
		existing, err := e.store.Get(ctx, msg.TaskID)
		if err != nil {
			return nil, err
		}
		if existing.Status.State.Terminal() {
			return nil, ErrContinueTerminal
		}
		t = existing
	} else {
		contextID := msg.ContextID
		if contextID == "" {
			contextID = uuid.NewString()
		}
		t = &Task{Kind: "task", ID: uuid.NewString(), ContextID: contextID}
		e.setStatus(t, StateSubmitted, nil)
	}
	msg.TaskID, msg.ContextID = t.ID, t.ContextID
	t.History = append(t.History, msg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.running[t.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, t.ID)
		e.mu.Unlock()
	}()

	e.setStatus(t, StateWorking, nil)
	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	e.log.Info().Str("task", t.ID).Str("context", t.ContextID).Msg("task working")

	reply, err := e.agent.Ask(runCtx, msg.Text())

	// Cancel may have finished the task while the agent ran.
	if cur, gerr := e.store.Get(ctx, t.ID); gerr == nil && cur.Status.State == StateCanceled {
		return cur, nil
	}

	if err != nil {
		e.log.Error().Str("task", t.ID).Err(err).Msg("task failed")
		m := NewMessage(RoleAgent, err.Error())
		m.TaskID, m.ContextID = t.ID, t.ContextID
		e.setStatus(t, StateFailed, &m)
	} else {
		m := NewMessage(RoleAgent, reply)
		m.TaskID, m.ContextID = t.ID, t.ContextID
		t.History = append(t.History, m)
		t.Artifacts = append(t.Artifacts, Artifact{
			ArtifactID: uuid.NewString(),
			Name:       "response",
			Parts:      []Part{TextPart(reply)},
		})
		e.setStatus(t, StateCompleted, nil)
		e.log.Info().Str("task", t.ID).Msg("task completed")
	}
	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a task. A positive historyLength keeps only the most recent
// messages.
func (e *Executor) Get(ctx context.Context, id string, historyLength int) (*Task, error) {
	t, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if historyLength > 0 && len(t.History) > historyLength {
		t.History = t.History[len(t.History)-historyLength:]
	}
	return t, nil
}

// Cancel stops a running task.
func (e *Executor) Cancel(ctx context.Context, id string) (*Task, error) {
	t, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.State.Terminal() {
		return nil, ErrNotCancelable
	}
	e.setStatus(t, StateCanceled, nil)
	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if cancel, ok := e.running[id]; ok {
		cancel()
	}
	e.mu.Unlock()
	e.log.Info().Str("task", id).Msg("task canceled")
	return t, nil
}
