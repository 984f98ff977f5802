package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ctorder/internal/ir"
)

// AssertionError is returned when an assertion fails. It carries the
// trace for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []ir.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s", ev.Seq, ev.Kind, ev.Path, ev.Class)
		if ev.Step != "" {
			fmt.Fprintf(&buf, " step=%s", ev.Step)
		}
		if ev.Detail != "" {
			fmt.Fprintf(&buf, " %q", ev.Detail)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the messages of
// those that failed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutput:
		return assertOutput(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertOutput(result *Result, a Assertion) error {
	if got := result.Output(); got != a.Equals {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%q", a.Equals),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks that at least one event matches.
func assertTraceContains(trace []ir.Event, a Assertion) error {
	for _, ev := range trace {
		if a.Match.matches(ev) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: a.Match.String(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events occur in the given order.
// Other events may come in between.
func assertTraceOrder(trace []ir.Event, a Assertion) error {
	pos := 0
	for i, m := range a.Events {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if m.matches(ev) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %s", describeAll(a.Events)),
				Actual:   fmt.Sprintf("no %s after event %d", m.String(), i),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []ir.Event, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.Match.matches(ev) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Match.String()),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func (m *EventMatch) matches(ev ir.Event) bool {
	return (m.Kind == "" || m.Kind == string(ev.Kind)) &&
		(m.Path == "" || m.Path == ev.Path) &&
		(m.Class == "" || m.Class == ev.Class) &&
		(m.Step == "" || m.Step == string(ev.Step)) &&
		(m.Detail == "" || m.Detail == ev.Detail)
}

func (m *EventMatch) String() string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"kind", m.Kind}, {"path", m.Path}, {"class", m.Class}, {"step", m.Step}, {"detail", m.Detail},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", f.name, f.value))
		}
	}
	if len(parts) == 0 {
		return "{any}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func describeAll(ms []EventMatch) string {
	parts := make([]string, len(ms))
	for i := range ms {
		parts[i] = ms[i].String()
	}
	return strings.Join(parts, ", ")
}
