package conversation

import (
	"path/filepath"
	"testing"

	"github.com/voltr/surge/internal/tool"
)

func openTestLog(t *testing.T, path string) *Log {
	t.Helper()
	l, err := OpenLog(path)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.db")

	{
		l := openTestLog(t, path)
		state := NewState()
		state.SetSink(l)

		if err := state.Append(HumanTurn("assess the node")); err != nil {
			t.Fatalf("Append: %v", err)
		}
		state.AddTokens(321)
		if err := state.Append(ToolCallTurn([]tool.CallRequest{{ID: "c1", Name: "list_channels"}})); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := state.Append(ModelTurn("done")); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	l := openTestLog(t, path)
	restored := NewState()
	n, err := l.Replay(restored)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 3 {
		t.Fatalf("Replay returned %d, want 3", n)
	}

	snap := restored.Snapshot()
	if snap.Turns[0].Role != RoleHuman || snap.Turns[0].Text != "assess the node" {
		t.Errorf("turn 0 = %+v", snap.Turns[0])
	}
	if snap.Turns[1].Role != RoleToolCalls || snap.Turns[1].Calls[0].Name != "list_channels" {
		t.Errorf("turn 1 = %+v", snap.Turns[1])
	}
	if snap.TokensUsed != 321 {
		t.Errorf("TokensUsed = %d, want 321", snap.TokensUsed)
	}
}

func TestLogRefusesOverwrite(t *testing.T) {
	l := openTestLog(t, filepath.Join(t.TempDir(), "surge.db"))

	if err := l.AppendTurn(0, HumanTurn("first"), 0); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := l.AppendTurn(0, HumanTurn("second"), 0); err == nil {
		t.Fatal("expected error appending duplicate sequence")
	}
}

func TestReplayDetectsGaps(t *testing.T) {
	l := openTestLog(t, filepath.Join(t.TempDir(), "surge.db"))

	if err := l.AppendTurn(0, HumanTurn("first"), 0); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := l.AppendTurn(2, HumanTurn("third"), 0); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	if _, err := l.Replay(NewState()); err == nil {
		t.Fatal("expected gap error from Replay")
	}
}

func TestReplayEmptyLog(t *testing.T) {
	l := openTestLog(t, filepath.Join(t.TempDir(), "surge.db"))

	state := NewState()
	n, err := l.Replay(state)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 0 || state.Len() != 0 {
		t.Fatalf("replayed %d turns into %d-turn state, want empty", n, state.Len())
	}
}
