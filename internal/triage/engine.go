package triage

import (
	"errors"
	"log/slog"
	"time"
)

// MailClient is the slice of the provider client the engine needs to carry
// out actions.
type MailClient interface {
	SetReadState(id string, read bool) error
	Move(id, mailbox string) error
}

// MessageStore is the slice of the local store the engine mutates.
type MessageStore interface {
	UpdateReadState(id string, read bool) error
	MarkProcessed(id string) error
}

// TraceFunc receives one entry per evaluated condition when tracing is
// enabled on the engine.
type TraceFunc func(msgID string, cond Condition, matched bool)

// Effector is the engine's side-effect strategy. The committing
// implementation talks to the mail provider and the store; the dry-run one
// records what would have happened. Keeping the split here means the
// matching logic above it is byte-for-byte identical in both modes.
type Effector interface {
	SetRead(msg Message, read bool)
	Move(msg Message, target string)
	MarkProcessed(msg Message)
}

// Engine applies an ordered rule set to messages: first matching rule wins,
// its actions dispatch in order, and every evaluated message is marked
// processed through the effector.
type Engine struct {
	rules []Rule
	fx    Effector
	trace TraceFunc
	now   func() time.Time
}

// Option configures optional engine behavior.
type Option func(*Engine)

// WithTrace installs a per-condition trace callback.
func WithTrace(f TraceFunc) Option {
	return func(e *Engine) { e.trace = f }
}

// WithClock overrides the time source used for date-relative conditions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(rules []Rule, fx Effector, opts ...Option) *Engine {
	e := &Engine{rules: rules, fx: fx, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process evaluates every message against the rule set. Failures are
// isolated per message: nothing that happens while dispatching one
// message's actions stops the remaining messages from being evaluated.
func (e *Engine) Process(msgs []Message) {
	slog.Info("starting rule processing", "messages", len(msgs), "rules", len(e.rules))
	for _, msg := range msgs {
		e.processOne(msg)
	}
}

func (e *Engine) processOne(msg Message) {
	now := e.now()
	for _, rule := range e.rules {
		if !e.ruleMatches(msg, rule, now) {
			continue
		}
		slog.Info("rule matched", "rule", rule.Description, "id", msg.ID, "subject", msg.Subject)
		e.dispatch(msg, rule.Actions)
		break
	}
	e.fx.MarkProcessed(msg)
}

// ruleMatches evaluates every condition (so tracing sees all of them) and
// combines the results with the rule's predicate. An empty All is
// vacuously true, an empty Any is false, and an unrecognized predicate
// never matches.
func (e *Engine) ruleMatches(msg Message, rule Rule, now time.Time) bool {
	results := make([]bool, len(rule.Conditions))
	for i, cond := range rule.Conditions {
		results[i] = Evaluate(msg, cond, now)
		if e.trace != nil {
			e.trace(msg.ID, cond, results[i])
		}
	}

	switch rule.Predicate {
	case PredicateAll:
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case PredicateAny:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	return false
}

func (e *Engine) dispatch(msg Message, actions []Action) {
	for _, action := range actions {
		switch action.Type {
		case ActionMarkRead:
			e.fx.SetRead(msg, true)
		case ActionMarkUnread:
			e.fx.SetRead(msg, false)
		case ActionMove:
			e.fx.Move(msg, action.Value)
		default:
			slog.Debug("skipping unknown action", "id", msg.ID)
		}
	}
}

// CommitEffector performs actions for real: provider first, then the local
// store. A provider failure skips the store mirror for that one action and
// processing moves on.
type CommitEffector struct {
	client MailClient
	store  MessageStore
}

// NewCommitEffector fails when no mail client was supplied; an engine that
// is allowed to mutate state but cannot reach the provider is a
// configuration error, caught before any message is touched.
func NewCommitEffector(client MailClient, store MessageStore) (*CommitEffector, error) {
	if client == nil {
		return nil, errors.New("a mail client is required to execute actions")
	}
	return &CommitEffector{client: client, store: store}, nil
}

func (c *CommitEffector) SetRead(msg Message, read bool) {
	if err := c.client.SetReadState(msg.ID, read); err != nil {
		slog.Error("failed to change read state", "id", msg.ID, "read", read, "error", err)
		return
	}
	if c.store == nil {
		return
	}
	if err := c.store.UpdateReadState(msg.ID, read); err != nil {
		slog.Error("failed to record read state", "id", msg.ID, "error", err)
	}
}

func (c *CommitEffector) Move(msg Message, target string) {
	if err := c.client.Move(msg.ID, target); err != nil {
		slog.Error("failed to move message", "id", msg.ID, "target", target, "error", err)
		return
	}
	slog.Info("moved message", "id", msg.ID, "target", target)
}

func (c *CommitEffector) MarkProcessed(msg Message) {
	if c.store == nil {
		return
	}
	if err := c.store.MarkProcessed(msg.ID); err != nil {
		slog.Error("failed to mark message processed", "id", msg.ID, "error", err)
	}
}

// PlannedOp is one side effect a dry run would have performed.
type PlannedOp struct {
	MessageID string
	Op        string
	Target    string
}

// DryRunEffector records planned operations instead of performing them.
// Nothing is mutated, including the processed flag, so a dry run can be
// repeated against the same unprocessed set.
type DryRunEffector struct {
	Planned []PlannedOp
}

func (d *DryRunEffector) SetRead(msg Message, read bool) {
	op := "mark_read"
	if !read {
		op = "mark_unread"
	}
	d.Planned = append(d.Planned, PlannedOp{MessageID: msg.ID, Op: op})
	slog.Info("dry-run: would change read state", "id", msg.ID, "read", read)
}

func (d *DryRunEffector) Move(msg Message, target string) {
	d.Planned = append(d.Planned, PlannedOp{MessageID: msg.ID, Op: "move", Target: target})
	slog.Info("dry-run: would move message", "id", msg.ID, "target", target)
}

func (d *DryRunEffector) MarkProcessed(msg Message) {
	slog.Debug("dry-run: leaving processed flag untouched", "id", msg.ID)
}
