package pipeline

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Stage states of a run.
const (
	StateStart       statekit.StateID = "start"
	StateParsed      statekit.StateID = "parsed"
	StateClassified  statekit.StateID = "classified"
	StateSummarized  statekit.StateID = "summarized"
	StateFormatted   statekit.StateID = "formatted"
	StateDegraded    statekit.StateID = "degraded"
	StateParseFailed statekit.StateID = "parse_failed"
	StateDone        statekit.StateID = "done"
)

// Events that move a run between states.
const (
	EventParsed      statekit.EventType = "PARSED"
	EventParseFailed statekit.EventType = "PARSE_FAILED"
	EventClassified  statekit.EventType = "CLASSIFIED"
	EventSummarized  statekit.EventType = "SUMMARIZED"
	EventFormatted   statekit.EventType = "FORMATTED"
	EventDegrade     statekit.EventType = "DEGRADE"
	EventFinish      statekit.EventType = "FINISH"
)

// GuardWithinBudget blocks FINISH from formatted while the header is over
// the limit.
const GuardWithinBudget statekit.GuardType = "withinBudget"

// runState is what the guards look at.
type runState struct {
	headerLength int
	maxHeader    int
}

// runMachine tracks one run through the stages and records the states it
// visits.
type runMachine struct {
	interpreter *statekit.Interpreter[runState]
	state       *runState
	trace       []string
}

func newRunMachine(maxHeader int) (*runMachine, error) {
	st := &runState{maxHeader: maxHeader}

	withinBudget := func(_ runState, _ statekit.Event) bool {
		return st.headerLength > 0 && st.headerLength <= st.maxHeader
	}

	machine, err := statekit.NewMachine[runState]("commit-run").
		WithInitial(StateStart).
		WithGuard(GuardWithinBudget, withinBudget).
		State(StateStart).
		On(EventParsed).Target(StateParsed).
		On(EventParseFailed).Target(StateParseFailed).
		Done().
		State(StateParsed).
		On(EventClassified).Target(StateClassified).
		On(EventDegrade).Target(StateDegraded).
		Done().
		State(StateClassified).
		On(EventSummarized).Target(StateSummarized).
		On(EventDegrade).Target(StateDegraded).
		Done().
		State(StateSummarized).
		On(EventFormatted).Target(StateFormatted).
		On(EventDegrade).Target(StateDegraded).
		Done().
		State(StateFormatted).
		On(EventFinish).Target(StateDone).Guard(GuardWithinBudget).
		On(EventDegrade).Target(StateDegraded).
		Done().
		// a degraded run still walks the remaining stages
		State(StateDegraded).
		On(EventClassified).Target(StateDegraded).
		On(EventSummarized).Target(StateDegraded).
		On(EventFormatted).Target(StateDegraded).
		On(EventFinish).Target(StateDone).
		Done().
		State(StateParseFailed).
		Final().
		Done().
		State(StateDone).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	m := &runMachine{
		interpreter: statekit.NewInterpreter(machine),
		state:       st,
	}
	m.interpreter.Start()
	m.record()
	return m, nil
}

func (m *runMachine) send(event statekit.EventType) {
	m.interpreter.Send(statekit.Event{Type: event})
	m.record()
}

func (m *runMachine) record() {
	s := string(m.current())
	if n := len(m.trace); n == 0 || m.trace[n-1] != s {
		m.trace = append(m.trace, s)
	}
}

func (m *runMachine) current() statekit.StateID {
	return m.interpreter.State().Value
}

func (m *runMachine) degraded() bool {
	for _, s := range m.trace {
		if s == string(StateDegraded) {
			return true
		}
	}
	return false
}

// finish moves the run to done. A formatted run whose header broke the limit
// is degraded first.
func (m *runMachine) finish(headerLength int) {
	m.state.headerLength = headerLength
	m.send(EventFinish)
	if m.current() != StateDone {
		m.send(EventDegrade)
		m.send(EventFinish)
	}
}

func (m *runMachine) Trace() []string {
	return append([]string(nil), m.trace...)
}
