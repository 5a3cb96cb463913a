package statemachine

import (
	"testing"

	"github.com/kstaniek/spa-gateway/internal/protocol"
)

type testKind int

const (
	kindAwaiting testKind = iota
	kindGreeted
)

type testContext struct {
	greetings int
}

type awaitingState struct{}

func (awaitingState) Kind() testKind { return kindAwaiting }

func (awaitingState) HandleMessage(args *StateArgs[testKind, testContext]) Result {
	if args.MessageType.Kind != protocol.KindNewClientClearToSend {
		return Result{Kind: NotHandled}
	}
	args.Context.greetings++
	args.Mover.MoveToState(greetedState{})
	return Result{Kind: HandledNoReply}
}

type greetedState struct{}

func (greetedState) Kind() testKind { return kindGreeted }

func (greetedState) HandleMessage(args *StateArgs[testKind, testContext]) Result {
	return Result{Kind: HandledNoReply}
}

type fakeWriter struct {
	sent []protocol.Message
}

func (f *fakeWriter) Write(m protocol.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func TestMachineDefersStateTransition(t *testing.T) {
	m := New[testKind, testContext](awaitingState{}, testContext{})
	w := &fakeWriter{}
	logger := protocol.NewMessageLogger("test")
	channel, _ := protocol.NewClientChannel(0)

	if m.StateKind() != kindAwaiting {
		t.Fatalf("expected initial state kindAwaiting, got %v", m.StateKind())
	}

	mt := protocol.MessageType{Kind: protocol.KindNewClientClearToSend}
	if err := m.HandleMessage(w, logger, channel, mt); err != nil {
		t.Fatal(err)
	}
	if m.StateKind() != kindGreeted {
		t.Fatalf("expected transition to kindGreeted, got %v", m.StateKind())
	}
	if m.Context.greetings != 1 {
		t.Fatalf("expected 1 greeting recorded, got %d", m.Context.greetings)
	}

	// A second message handled by the new state must not trigger another
	// transition or increment the context (the awaiting handler never runs
	// again).
	if err := m.HandleMessage(w, logger, channel, mt); err != nil {
		t.Fatal(err)
	}
	if m.Context.greetings != 1 {
		t.Fatalf("expected greetings to stay at 1, got %d", m.Context.greetings)
	}
}

func TestChannelFilterBlocksUnrelatedChannel(t *testing.T) {
	mine, _ := protocol.NewClientChannel(0)
	other, _ := protocol.NewClientChannel(1)

	m := New[testKind, testContext](awaitingState{}, testContext{})
	m.Filter = RelevantTo(mine)
	w := &fakeWriter{}
	logger := protocol.NewMessageLogger("test")

	mt := protocol.MessageType{Kind: protocol.KindNewClientClearToSend}
	if err := m.HandleMessage(w, logger, other, mt); err != nil {
		t.Fatal(err)
	}
	if m.StateKind() != kindAwaiting {
		t.Fatal("message on an unrelated channel must be filtered out entirely")
	}

	if err := m.HandleMessage(w, logger, protocol.MulticastBroadcast, mt); err != nil {
		t.Fatal(err)
	}
	if m.StateKind() != kindGreeted {
		t.Fatal("broadcast channel must pass the filter even when targeting a specific channel")
	}
}
