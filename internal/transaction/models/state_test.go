package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gmq/pkg/domain-errors"
)

func TestTransitionTableCoversEveryState(t *testing.T) {
	known := map[State]bool{}
	for _, s := range AllStates() {
		known[s] = true
	}
	for e, to := range transitions {
		assert.True(t, known[e.from], "unknown from-state %q", e.from)
		assert.True(t, known[to], "unknown to-state %q", to)
	}
}

func TestEveryStateIsReachableFromNew(t *testing.T) {
	seen := map[State]bool{StateNew: true}
	frontier := []State{StateNew}
	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		for _, e := range s.Events() {
			to, _ := Next(s, e)
			if !seen[to] {
				seen[to] = true
				frontier = append(frontier, to)
			}
		}
	}
	for _, s := range AllStates() {
		assert.True(t, seen[s], "state %q is unreachable", s)
	}
}

func TestEveryNonTerminalStateCanFinish(t *testing.T) {
	for _, start := range AllStates() {
		if start.IsTerminal() {
			continue
		}
		seen := map[State]bool{start: true}
		frontier := []State{start}
		finished := false
		for len(frontier) > 0 && !finished {
			s := frontier[0]
			frontier = frontier[1:]
			for _, e := range s.Events() {
				to, _ := Next(s, e)
				if to.IsTerminal() {
					finished = true
					break
				}
				if !seen[to] {
					seen[to] = true
					frontier = append(frontier, to)
				}
			}
		}
		assert.True(t, finished, "state %q cannot reach a terminal state", start)
	}
}

func TestRetryingStatesAcceptTheirStartEvent(t *testing.T) {
	cases := map[State]Event{
		StateRetryingReceipt:    EventStartReceipt,
		StateRetryingRapsheet:   EventStartValidation,
		StateRetryingRetrieval:  EventStartRetrieval,
		StateRetryingGeneration: EventStartGeneration,
		StateRetryingMailing:    EventStartMailing,
	}
	for state, event := range cases {
		_, ok := Next(state, event)
		assert.True(t, ok, "%s must accept %s", state, event)
		_, ok = Next(state, EventFail)
		assert.True(t, ok, "%s must accept fail", state)
	}
}

func TestStageEntryStatesAcceptStartEvents(t *testing.T) {
	starts := map[Stage]Event{
		StageReceipt:    EventStartReceipt,
		StageRapsheet:   EventStartValidation,
		StageRetrieval:  EventStartRetrieval,
		StageGeneration: EventStartGeneration,
	}
	for _, stage := range Stages() {
		entry, ok := stage.EntryState()
		require.True(t, ok)
		_, ok = Next(entry, starts[stage])
		assert.True(t, ok, "entry state of %s must accept %s", stage, starts[stage])
	}
	_, ok := Stage("bogus").EntryState()
	assert.False(t, ok)
}

func TestApplyRejectsIllegalTransition(t *testing.T) {
	tx := &Transaction{ID: "PRCAP1", State: StateReceived}
	err := tx.Apply(EventMailSent, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	assert.Equal(t, StateReceived, tx.State)
	assert.Empty(t, tx.History)
}

func TestApplyRecordsHistory(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := &Transaction{ID: "PRCAP1", State: StateNew}
	require.NoError(t, tx.Apply(EventSaveFirst, at))
	require.NoError(t, tx.Apply(EventStartReceipt, at))

	assert.Equal(t, StateSendingReceipt, tx.State)
	require.Len(t, tx.History, 2)
	assert.Equal(t, HistoryEntry{From: StateNew, To: StateReceived, Event: EventSaveFirst, At: at}, tx.History[0])
}

func TestHistoryIsCapped(t *testing.T) {
	tx := &Transaction{State: StateMailingCertificate}
	for range historyLimit + 10 {
		require.NoError(t, tx.Apply(EventStartMailing, time.Now()))
	}
	assert.Len(t, tx.History, historyLimit)
}

func TestTerminalAndFailed(t *testing.T) {
	assert.True(t, StateDone.IsTerminal())
	assert.False(t, StateDone.IsFailed())
	assert.True(t, StateFailedMailing.IsFailed())
	assert.False(t, StateWaitingForCertificate.IsTerminal())
}
