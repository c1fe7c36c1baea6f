package triage

import (
	"regexp"
	"strings"
	"time"
)

// Message is the provider-neutral email record the engine evaluates.
// Instances are value types; state changes (read/unread, processed) are
// written to the store, never into an existing Message.
type Message struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
	IsRead     bool
	Processed  bool
}

// Field identifies which Message attribute a condition inspects.
type Field int

const (
	FieldUnknown Field = iota
	FieldFrom
	FieldSubject
	FieldBody
	FieldReceived
)

// ParseField maps a rule-file field name to its Field. Unrecognized names
// map to FieldUnknown, which never matches anything at evaluation time.
func ParseField(s string) Field {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "from":
		return FieldFrom
	case "subject":
		return FieldSubject
	case "message":
		return FieldBody
	case "received date/time", "received datetime", "receiveddatetime":
		return FieldReceived
	}
	return FieldUnknown
}

func (f Field) String() string {
	switch f {
	case FieldFrom:
		return "From"
	case FieldSubject:
		return "Subject"
	case FieldBody:
		return "Message"
	case FieldReceived:
		return "Received Date/Time"
	}
	return "Unknown"
}

// Operator is the comparison a condition applies. The date-relative
// operators fold direction and unit into one value so the evaluator can
// switch exhaustively: "less than" means newer than the threshold,
// "greater than" means older.
type Operator int

const (
	OpUnknown Operator = iota
	OpContains
	OpNotContains
	OpEquals
	OpNotEquals
	OpNewerThanDays
	OpNewerThanMonths
	OpOlderThanDays
	OpOlderThanMonths
)

var unitPattern = regexp.MustCompile(`\((\w+)\)`)

// ParseOperator maps a rule-file operator string to its Operator. Date
// operators carry an optional unit in parentheses, e.g. "less than (days)";
// a missing unit defaults to days, an unrecognized unit yields OpUnknown.
func ParseOperator(s string) Operator {
	op := strings.ToLower(strings.TrimSpace(s))
	switch op {
	case "contains":
		return OpContains
	case "does not contain":
		return OpNotContains
	case "equals":
		return OpEquals
	case "does not equal":
		return OpNotEquals
	}

	newer := strings.HasPrefix(op, "less than")
	older := strings.HasPrefix(op, "greater than")
	if !newer && !older {
		return OpUnknown
	}

	unit := "days"
	if m := unitPattern.FindStringSubmatch(op); m != nil {
		unit = m[1]
	}

	switch {
	case newer && unit == "days":
		return OpNewerThanDays
	case newer && unit == "months":
		return OpNewerThanMonths
	case older && unit == "days":
		return OpOlderThanDays
	case older && unit == "months":
		return OpOlderThanMonths
	}
	return OpUnknown
}

func (o Operator) String() string {
	switch o {
	case OpContains:
		return "contains"
	case OpNotContains:
		return "does not contain"
	case OpEquals:
		return "equals"
	case OpNotEquals:
		return "does not equal"
	case OpNewerThanDays:
		return "less than (days)"
	case OpNewerThanMonths:
		return "less than (months)"
	case OpOlderThanDays:
		return "greater than (days)"
	case OpOlderThanMonths:
		return "greater than (months)"
	}
	return "unknown"
}

// Condition is a single comparison against one message field.
type Condition struct {
	Field    Field
	Operator Operator
	Value    string
}

// ActionType identifies the state change a matched rule performs.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionMarkRead
	ActionMarkUnread
	ActionMove
)

// ParseActionType accepts both the compact spelling ("MarkRead") and the
// spaced one ("Mark as Read") seen in existing rule files.
func ParseActionType(s string) ActionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mark as read", "markread", "mark read":
		return ActionMarkRead
	case "mark as unread", "markunread", "mark unread":
		return ActionMarkUnread
	case "move message", "movemessage", "move":
		return ActionMove
	}
	return ActionUnknown
}

func (a ActionType) String() string {
	switch a {
	case ActionMarkRead:
		return "Mark as Read"
	case ActionMarkUnread:
		return "Mark as Unread"
	case ActionMove:
		return "Move Message"
	}
	return "unknown"
}

// Action is one state change to perform when a rule matches. Value is the
// target mailbox for ActionMove and unused otherwise.
type Action struct {
	Type  ActionType
	Value string
}

// Predicate is the boolean combinator applied across a rule's conditions.
type Predicate int

const (
	PredicateUnknown Predicate = iota
	PredicateAll
	PredicateAny
)

func ParsePredicate(s string) Predicate {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return PredicateAll
	case "any":
		return PredicateAny
	}
	return PredicateUnknown
}

func (p Predicate) String() string {
	switch p {
	case PredicateAll:
		return "All"
	case PredicateAny:
		return "Any"
	}
	return "unknown"
}

// Rule combines ordered conditions with ordered actions. Order matters on
// both: rules are tried first to last, and a matched rule's actions run in
// the order they were written.
type Rule struct {
	Description string
	Predicate   Predicate
	Conditions  []Condition
	Actions     []Action
}
