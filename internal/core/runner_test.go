package core

import (
	"context"
	"testing"
	"time"
)

func TestRunner_HandleSwallowsFatal(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeExecutor{})
	r := NewRunner(svc, NewImportLimiter(1, time.Second))

	if err := r.Handle(context.Background(), "missing"); err != nil {
		t.Errorf("Handle() error = %v, want nil for a fatal error", err)
	}
	if r.Limiter().ActiveCount() != 0 {
		t.Errorf("slot not released, active = %d", r.Limiter().ActiveCount())
	}
}

func TestRunner_HandleBusy(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeExecutor{})
	limiter := NewImportLimiter(1, 20*time.Millisecond)
	r := NewRunner(svc, limiter)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer limiter.Release()

	if err := r.Handle(context.Background(), "any"); err == nil {
		t.Error("Handle() with no free slot should return an error")
	}
}

func TestLocalQueue_RunsEnqueuedJobs(t *testing.T) {
	exec := &fakeExecutor{}
	svc, jobs, _ := newTestService(t, exec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data := workbookBytes(t, peopleWorkbook(t, [2]any{"A1", "Ada"}))
	job, err := svc.Submit(ctx, SubmitRequest{EntityType: "clients", Data: data})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	q := NewLocalQueue(NewRunner(svc, NewImportLimiter(2, time.Second)), 4)
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	if err := q.Enqueue(ctx, job.ID); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		saved, _ := jobs.FindByID(ctx, job.ID)
		if saved.Completed() {
			if saved.SuccessCount != 1 {
				t.Errorf("SuccessCount = %d, want 1", saved.SuccessCount)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not complete")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestLocalQueue_EnqueueRespectsContext(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeExecutor{})
	q := NewLocalQueue(NewRunner(svc, NewImportLimiter(1, time.Second)), 1)

	if err := q.Enqueue(context.Background(), "a"); err != nil {
		t.Fatalf("first Enqueue() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, "b"); err == nil {
		t.Error("Enqueue() on a full queue should fail when ctx expires")
	}
}
