package statemachine

import "testing"

type counter struct {
	n int
}

func stateLow(c *counter) StateFn[counter] {
	if c.n >= 3 {
		return stateHigh
	}
	return stateLow
}

func stateHigh(c *counter) StateFn[counter] {
	return stateHigh
}

func stateDone(c *counter) StateFn[counter] {
	return nil
}

func TestStepTransitions(t *testing.T) {
	c := &counter{}
	m := New(c, stateLow)

	m.Step()
	if !m.Is(stateLow) {
		t.Fatal("expected to stay in low")
	}

	c.n = 5
	m.Step()
	if !m.Is(stateHigh) {
		t.Fatal("expected transition to high")
	}
}

func TestDispatchSetsState(t *testing.T) {
	c := &counter{}
	m := New(c, stateLow)

	m.Dispatch(stateHigh)
	if !m.Is(stateHigh) {
		t.Fatal("dispatch should land in high")
	}
}

func TestTermination(t *testing.T) {
	c := &counter{}
	m := New(c, stateDone)

	m.Step()
	if m.Current() != nil {
		t.Fatal("expected terminated machine")
	}
	if !m.Is(nil) {
		t.Fatal("Is(nil) should hold after termination")
	}
	// Step on a terminated machine is a no-op.
	m.Step()
}
