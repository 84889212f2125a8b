package service

import "testing"

func TestVisibilityGateFailsOpenWhileUnresolved(t *testing.T) {
	gate := NewVisibilityGate()

	if gate.Resolved() {
		t.Fatal("new gate should be unresolved")
	}
	if !gate.CanSend() {
		t.Error("unresolved gate should permit sending")
	}
}

func TestVisibilityGateLatchesOnResolve(t *testing.T) {
	gate := NewVisibilityGate()

	gate.Resolve(false)
	if gate.CanSend() {
		t.Error("invisible user should be blocked after resolution")
	}
	if !gate.Resolved() {
		t.Error("gate should stay resolved")
	}

	// Later resolutions update the value but the grace never re-arms.
	gate.Resolve(true)
	if !gate.CanSend() {
		t.Error("visible user should be allowed")
	}
	gate.Resolve(false)
	if gate.CanSend() {
		t.Error("gate should track the latest resolved value")
	}
}
