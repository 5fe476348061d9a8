package monitor

import "testing"

func TestNoopSatisfiesMonitor(t *testing.T) {
	var m Monitor = Noop{}
	if err := m.AppendTaskInfo("task", TaskInfoRow{TaskNo: 1, Weight: 1, Duration: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SaveInfo("task", TransferInfo{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := m.ChildDuration(); d != 0 {
		t.Fatalf("expected 0 duration, got %v", d)
	}
}
