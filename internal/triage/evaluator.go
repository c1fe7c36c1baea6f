package triage

import (
	"strconv"
	"strings"
	"time"
)

// approxMonth is the fixed month length used by date conditions. Rule
// matching has always used 30-day months; calendar-aware arithmetic would
// change which messages existing rules hit.
const approxMonth = 30 * 24 * time.Hour

// Evaluate checks one condition against one message. It never fails:
// unknown fields or operators, string operators on the date field, and
// unparseable numeric values all resolve to no-match.
func Evaluate(msg Message, cond Condition, now time.Time) bool {
	switch cond.Operator {
	case OpContains, OpNotContains, OpEquals, OpNotEquals:
		value, ok := stringField(msg, cond.Field)
		if !ok {
			return false
		}
		return compareString(cond.Operator, value, cond.Value)

	case OpNewerThanDays, OpNewerThanMonths, OpOlderThanDays, OpOlderThanMonths:
		if cond.Field != FieldReceived {
			return false
		}
		return compareAge(cond.Operator, now.Sub(msg.ReceivedAt), cond.Value)
	}
	return false
}

// stringField resolves the message attribute for the string operators.
// FieldReceived is not a string field; comparing it lexically would be
// meaningless, so it reports not-ok.
func stringField(msg Message, f Field) (string, bool) {
	switch f {
	case FieldFrom:
		return msg.From, true
	case FieldSubject:
		return msg.Subject, true
	case FieldBody:
		return msg.Body, true
	}
	return "", false
}

func compareString(op Operator, fieldValue, condValue string) bool {
	fieldValue = strings.ToLower(fieldValue)
	condValue = strings.ToLower(condValue)

	switch op {
	case OpContains:
		return strings.Contains(fieldValue, condValue)
	case OpNotContains:
		return !strings.Contains(fieldValue, condValue)
	case OpEquals:
		return fieldValue == condValue
	case OpNotEquals:
		return fieldValue != condValue
	}
	return false
}

// compareAge applies the date-relative operators. "less than" asks whether
// the message is newer than the threshold, "greater than" whether it is
// older. A magnitude that does not parse as an integer makes the condition
// a no-match rather than an error.
func compareAge(op Operator, age time.Duration, value string) bool {
	magnitude, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return false
	}

	var threshold time.Duration
	switch op {
	case OpNewerThanDays, OpOlderThanDays:
		threshold = time.Duration(magnitude) * 24 * time.Hour
	case OpNewerThanMonths, OpOlderThanMonths:
		threshold = time.Duration(magnitude) * approxMonth
	}

	switch op {
	case OpNewerThanDays, OpNewerThanMonths:
		return age < threshold
	case OpOlderThanDays, OpOlderThanMonths:
		return age > threshold
	}
	return false
}
