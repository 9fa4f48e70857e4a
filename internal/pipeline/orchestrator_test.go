package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestOrchestrator_SubmitRuns(t *testing.T) {
	done := make(chan string, 1)
	o := NewOrchestrator(func(ctx context.Context, run *Run) {
		run.SetStatus(StatusIndexing, "indexing")
		run.Finish()
		done <- run.ID
	}, time.Hour, 2, nil)
	o.Start(context.Background())
	defer o.Stop()

	run := NewRun("", false)
	if err := o.Submit(run); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case id := <-done:
		if id != run.ID {
			t.Errorf("expected run %q, got %q", run.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run was not executed")
	}

	got := o.GetRun(run.ID)
	if got == nil {
		t.Fatal("expected run to be tracked")
	}
	if got.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", got.Snapshot().Status)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(func(context.Context, *Run) {}, time.Hour, 1, nil)

	if err := o.Submit(NewRun("", false)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewRun("", false)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected run to be failed, got %q", second.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
