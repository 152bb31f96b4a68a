package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/agent"
	"hireplane/internal/schedule"
	"hireplane/internal/store"
	"hireplane/internal/store/memory"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAgent is a programmable CardClient + Invoker.
type fakeAgent struct {
	mu sync.Mutex

	card      *agent.Card
	cardErr   error
	fetches   int
	invokes   int
	invokeErr error

	lastTransport http.RoundTripper
}

func newFakeAgent(entrypoints ...string) *fakeAgent {
	eps := make(map[string]agent.Entrypoint, len(entrypoints))
	for _, key := range entrypoints {
		eps[key] = agent.Entrypoint{Description: key}
	}
	return &fakeAgent{
		card: &agent.Card{
			Name:        "fake-agent",
			Endpoint:    "https://agent.test/invoke",
			Entrypoints: eps,
		},
	}
}

func (f *fakeAgent) FetchCard(ctx context.Context, cardURL string) (*agent.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.cardErr != nil {
		return nil, f.cardErr
	}
	return f.card, nil
}

func (f *fakeAgent) Invoke(ctx context.Context, card *agent.Card, key string, input json.RawMessage, transport http.RoundTripper) (*agent.InvokeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invokes++
	f.lastTransport = transport
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &agent.InvokeResult{Output: json.RawMessage(`{}`), Status: "completed"}, nil
}

func (f *fakeAgent) invokeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invokes
}

func (f *fakeAgent) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type staticPayments struct {
	transport http.RoundTripper
	err       error
}

func (p staticPayments) TransportWithPayment(ctx context.Context, walletID, network string) (http.RoundTripper, error) {
	return p.transport, p.err
}

type markerTransport struct{}

func (markerTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc   *Service
	store *memory.Store
	agent *fakeAgent
	clock *fakeClock
}

func newFixture(t *testing.T, opts Options, entrypoints ...string) *fixture {
	t.Helper()
	if len(entrypoints) == 0 {
		entrypoints = []string{"run"}
	}
	fa := newFakeAgent(entrypoints...)
	clock := newFakeClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	st := memory.New()
	if opts.WorkerID == "" {
		opts.WorkerID = "test-worker"
	}
	return &fixture{
		svc:   New(st, fa, fa, nil, clock, quietLogger(), opts),
		store: st,
		agent: fa,
		clock: clock,
	}
}

func (f *fixture) createHire(t *testing.T, sched schedule.Schedule, maxRetries int) (*store.Hire, *store.Job) {
	t.Helper()
	hire, job, err := f.svc.CreateHire(context.Background(), CreateHireParams{
		AgentCardURL:  "https://agent.test/card.json",
		EntrypointKey: "run",
		Schedule:      sched,
		Input:         json.RawMessage(`{"task":"x"}`),
		MaxRetries:    &maxRetries,
	})
	if err != nil {
		t.Fatalf("CreateHire failed: %v", err)
	}
	return hire, job
}

func TestCreateHire(t *testing.T) {
	t.Run("persists hire and first job", func(t *testing.T) {
		f := newFixture(t, Options{})
		hire, job := f.createHire(t, schedule.Interval(time.Minute), 3)

		if hire.Status != store.HireStatusActive {
			t.Errorf("hire status = %s, want active", hire.Status)
		}
		if job.Status != store.JobStatusPending {
			t.Errorf("job status = %s, want pending", job.Status)
		}
		if job.NextRunAt == nil || !job.NextRunAt.Equal(f.clock.Now()) {
			t.Errorf("interval job should be due immediately, next run = %v", job.NextRunAt)
		}

		stored, err := f.store.GetHire(context.Background(), hire.ID)
		if err != nil {
			t.Fatalf("hire not persisted: %v", err)
		}
		if stored.Agent.CachedCard == nil {
			t.Error("card was not cached on the hire")
		}
	})

	t.Run("rejects invalid schedule before any fetch", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, _, err := f.svc.CreateHire(context.Background(), CreateHireParams{
			AgentCardURL:  "https://agent.test/card.json",
			EntrypointKey: "run",
			Schedule:      schedule.Interval(-time.Second),
		})
		var invalid *schedule.InvalidError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidError, got %v", err)
		}
		if f.agent.fetchCount() != 0 {
			t.Error("card was fetched despite invalid schedule")
		}
	})

	t.Run("rejects unknown entrypoint", func(t *testing.T) {
		f := newFixture(t, Options{}, "summarize")
		_, _, err := f.svc.CreateHire(context.Background(), CreateHireParams{
			AgentCardURL:  "https://agent.test/card.json",
			EntrypointKey: "translate",
			Schedule:      schedule.Interval(time.Minute),
		})
		var notFound *EntrypointNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected EntrypointNotFoundError, got %v", err)
		}
	})

	t.Run("once schedule keeps its configured time", func(t *testing.T) {
		f := newFixture(t, Options{})
		at := f.clock.Now().Add(-time.Hour) // past-due once jobs are valid
		_, job := f.createHire(t, schedule.Once(at), 0)
		if job.NextRunAt == nil || !job.NextRunAt.Equal(at) {
			t.Errorf("next run = %v, want %v", job.NextRunAt, at)
		}
	})
}

// failingPutJobStore wraps the memory store so job persistence can be forced
// to fail.
type failingPutJobStore struct {
	*memory.Store
	failPutJob bool
	deleted    []uuid.UUID
}

func (s *failingPutJobStore) PutJob(ctx context.Context, job *store.Job) error {
	if s.failPutJob {
		return errors.New("disk full")
	}
	return s.Store.PutJob(ctx, job)
}

func (s *failingPutJobStore) DeleteHire(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return s.Store.DeleteHire(ctx, id)
}

func TestCreateHireRollsBackOnJobFailure(t *testing.T) {
	fa := newFakeAgent("run")
	st := &failingPutJobStore{Store: memory.New(), failPutJob: true}
	svc := New(st, fa, fa, nil, newFakeClock(time.Now()), quietLogger(), Options{})

	_, _, err := svc.CreateHire(context.Background(), CreateHireParams{
		AgentCardURL:  "https://agent.test/card.json",
		EntrypointKey: "run",
		Schedule:      schedule.Interval(time.Minute),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(st.deleted) != 1 {
		t.Fatalf("hire was not rolled back, %d deletions", len(st.deleted))
	}
}

func TestAddJob(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown hire", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.AddJob(ctx, uuid.New(), AddJobParams{
			EntrypointKey: "run",
			Schedule:      schedule.Interval(time.Minute),
		})
		var notFound *HireNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected HireNotFoundError, got %v", err)
		}
	})

	t.Run("canceled hire refuses jobs", func(t *testing.T) {
		f := newFixture(t, Options{})
		hire, _ := f.createHire(t, schedule.Interval(time.Minute), 3)
		if res, err := f.svc.CancelHire(ctx, hire.ID); err != nil || !res.OK {
			t.Fatalf("cancel failed: %+v, %v", res, err)
		}

		_, err := f.svc.AddJob(ctx, hire.ID, AddJobParams{
			EntrypointKey: "run",
			Schedule:      schedule.Interval(time.Minute),
		})
		var canceled *HireCanceledError
		if !errors.As(err, &canceled) {
			t.Fatalf("expected HireCanceledError, got %v", err)
		}
	})

	t.Run("paused hire still accepts jobs", func(t *testing.T) {
		f := newFixture(t, Options{})
		hire, _ := f.createHire(t, schedule.Interval(time.Minute), 3)
		if res, err := f.svc.PauseHire(ctx, hire.ID); err != nil || !res.OK {
			t.Fatalf("pause failed: %+v, %v", res, err)
		}

		job, err := f.svc.AddJob(ctx, hire.ID, AddJobParams{
			EntrypointKey: "run",
			Schedule:      schedule.Cron("0 * * * *", ""),
		})
		if err != nil {
			t.Fatalf("AddJob on paused hire failed: %v", err)
		}
		if job.Status != store.JobStatusPending {
			t.Errorf("job status = %s, want pending", job.Status)
		}
	})
}

func TestHireLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	hire, _ := f.createHire(t, schedule.Interval(time.Minute), 3)

	steps := []struct {
		name   string
		op     func() (OpResult, error)
		wantOK bool
	}{
		{"resume active hire refused", func() (OpResult, error) { return f.svc.ResumeHire(ctx, hire.ID) }, false},
		{"pause active hire", func() (OpResult, error) { return f.svc.PauseHire(ctx, hire.ID) }, true},
		{"pause again refused", func() (OpResult, error) { return f.svc.PauseHire(ctx, hire.ID) }, false},
		{"resume paused hire", func() (OpResult, error) { return f.svc.ResumeHire(ctx, hire.ID) }, true},
		{"cancel hire", func() (OpResult, error) { return f.svc.CancelHire(ctx, hire.ID) }, true},
		{"cancel again refused", func() (OpResult, error) { return f.svc.CancelHire(ctx, hire.ID) }, false},
		{"pause canceled refused", func() (OpResult, error) { return f.svc.PauseHire(ctx, hire.ID) }, false},
		{"resume canceled refused", func() (OpResult, error) { return f.svc.ResumeHire(ctx, hire.ID) }, false},
	}

	for _, step := range steps {
		res, err := step.op()
		if err != nil {
			t.Fatalf("%s: unexpected error %v", step.name, err)
		}
		if res.OK != step.wantOK {
			t.Errorf("%s: OK = %v (reason %q), want %v", step.name, res.OK, res.Reason, step.wantOK)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	if res, _ := f.svc.ResumeJob(ctx, job.ID, time.Time{}); res.OK {
		t.Error("resuming a pending job should be refused")
	}

	if res, _ := f.svc.PauseJob(ctx, job.ID); !res.OK {
		t.Fatal("pausing a pending job should succeed")
	}
	if res, _ := f.svc.PauseJob(ctx, job.ID); res.OK {
		t.Error("pausing twice should be refused")
	}

	resumeAt := f.clock.Now().Add(time.Hour)
	if res, _ := f.svc.ResumeJob(ctx, job.ID, resumeAt); !res.OK {
		t.Fatal("resuming a paused job should succeed")
	}
	got, _ := f.store.GetJob(ctx, job.ID)
	if got.NextRunAt == nil || !got.NextRunAt.Equal(resumeAt) {
		t.Errorf("next run = %v, want %v", got.NextRunAt, resumeAt)
	}

	// Terminal states are final for both operations.
	got.Status = store.JobStatusFailed
	f.store.PutJob(ctx, got)
	if res, _ := f.svc.PauseJob(ctx, job.ID); res.OK {
		t.Error("pausing a failed job should be refused")
	}
	if res, _ := f.svc.ResumeJob(ctx, job.ID, time.Time{}); res.OK {
		t.Error("resuming a failed job should be refused")
	}

	got.Status = store.JobStatusCompleted
	f.store.PutJob(ctx, got)
	if res, _ := f.svc.PauseJob(ctx, job.ID); res.OK {
		t.Error("pausing a completed job should be refused")
	}
	if res, _ := f.svc.ResumeJob(ctx, job.ID, time.Time{}); res.OK {
		t.Error("resuming a completed job should be refused")
	}
}

func TestTickIntervalReschedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.clock.now = time.UnixMilli(1_000_000).UTC()
	_, job := f.createHire(t, schedule.Interval(60_000*time.Millisecond), 3)

	stats, err := f.svc.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Succeeded != 1 {
		t.Fatalf("stats = %+v, want 1 success", stats)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	want := time.UnixMilli(1_060_000).UTC()
	if got.NextRunAt == nil || !got.NextRunAt.Equal(want) {
		t.Errorf("next run = %v, want %v", got.NextRunAt, want)
	}
	if got.Attempts != 0 || got.LastError != "" || got.Lease != nil {
		t.Errorf("success did not clear run state: %+v", got)
	}
}

func TestTickOnceCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, job := f.createHire(t, schedule.Once(f.clock.Now().Add(-time.Minute)), 0)

	if _, err := f.svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.NextRunAt != nil {
		t.Errorf("completed once job should have nil next run, got %v", got.NextRunAt)
	}

	// Completed is terminal: later ticks must not touch it.
	f.clock.Advance(time.Hour)
	f.svc.Tick(ctx)
	again, _ := f.store.GetJob(ctx, job.ID)
	if again.Status != store.JobStatusCompleted {
		t.Errorf("completed job was re-dispatched")
	}
}

func TestTickCancellationPropagation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	hire, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	if res, err := f.svc.CancelHire(ctx, hire.ID); err != nil || !res.OK {
		t.Fatalf("cancel failed: %+v, %v", res, err)
	}

	invokesBefore := f.agent.invokeCount()
	if _, err := f.svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.LastError != "hire canceled" {
		t.Errorf("last error = %q, want %q", got.LastError, "hire canceled")
	}
	if f.agent.invokeCount() != invokesBefore {
		t.Error("invocation was attempted for a canceled hire")
	}
}

func TestTickMissingHire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	hire, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	f.store.DeleteHire(ctx, hire.ID)
	if _, err := f.svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusFailed || got.LastError != "hire missing" {
		t.Fatalf("got status %s, lastError %q", got.Status, got.LastError)
	}
}

func TestTickPausedHireDefers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{LeaseDuration: 30 * time.Second})
	hire, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	f.svc.PauseHire(ctx, hire.ID)
	now := f.clock.Now()

	stats, err := f.svc.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deferred != 1 {
		t.Fatalf("stats = %+v, want 1 deferral", stats)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusPending || got.Lease != nil {
		t.Fatalf("deferred job should be pending without a lease: %+v", got)
	}
	if got.Attempts != 0 {
		t.Error("deferral must not consume an attempt")
	}
	want := now.Add(30 * time.Second)
	if got.NextRunAt == nil || !got.NextRunAt.Equal(want) {
		t.Errorf("next run = %v, want %v", got.NextRunAt, want)
	}
}

func TestTickRetryExhaustion(t *testing.T) {
	ctx := context.Background()

	t.Run("zero retries fails on first error", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.agent.invokeErr = errors.New("connection refused")
		_, job := f.createHire(t, schedule.Interval(time.Minute), 0)

		if _, err := f.svc.Tick(ctx); err != nil {
			t.Fatal(err)
		}
		got, _ := f.store.GetJob(ctx, job.ID)
		if got.Status != store.JobStatusFailed {
			t.Fatalf("status = %s, want failed", got.Status)
		}
		if got.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", got.Attempts)
		}
		if got.LastError == "" {
			t.Error("last error not recorded")
		}
	})

	t.Run("three retries fails on fourth attempt", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.agent.invokeErr = errors.New("connection refused")
		_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

		for attempt := 1; attempt <= 4; attempt++ {
			// Jump past any backoff so the job is due again.
			f.clock.Advance(2 * time.Minute)
			if _, err := f.svc.Tick(ctx); err != nil {
				t.Fatal(err)
			}

			got, _ := f.store.GetJob(ctx, job.ID)
			if got.Attempts != attempt {
				t.Fatalf("after tick %d: attempts = %d", attempt, got.Attempts)
			}
			if attempt <= 3 && got.Status != store.JobStatusPending {
				t.Fatalf("after tick %d: status = %s, want pending", attempt, got.Status)
			}
			if attempt == 4 && got.Status != store.JobStatusFailed {
				t.Fatalf("after tick 4: status = %s, want failed", got.Status)
			}
		}
	})

	t.Run("backoff window is applied", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.agent.invokeErr = errors.New("flaky")
		_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

		now := f.clock.Now()
		if _, err := f.svc.Tick(ctx); err != nil {
			t.Fatal(err)
		}

		got, _ := f.store.GetJob(ctx, job.ID)
		// First attempt: 1s base, ±20% jitter.
		lo, hi := now.Add(800*time.Millisecond), now.Add(1200*time.Millisecond)
		if got.NextRunAt == nil || got.NextRunAt.Before(lo) || got.NextRunAt.After(hi) {
			t.Errorf("retry scheduled at %v, want within [%v, %v]", got.NextRunAt, lo, hi)
		}
	})

	t.Run("success resets the attempt counter", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.agent.invokeErr = errors.New("flaky")
		_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

		f.svc.Tick(ctx)
		f.agent.invokeErr = nil
		f.clock.Advance(2 * time.Minute)
		f.svc.Tick(ctx)

		got, _ := f.store.GetJob(ctx, job.ID)
		if got.Attempts != 0 || got.LastError != "" {
			t.Errorf("success did not reset failure state: attempts=%d lastError=%q", got.Attempts, got.LastError)
		}
	})
}

func TestTickEntrypointDisappeared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{CardTTL: time.Minute})
	_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	// The agent drops the entrypoint; the cache expires before the tick.
	f.agent.card = &agent.Card{Endpoint: "https://agent.test/invoke", Entrypoints: map[string]agent.Entrypoint{}}
	f.clock.Advance(2 * time.Minute)

	if _, err := f.svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusFailed {
		t.Fatalf("status = %s, want failed (configuration fault is not retried)", got.Status)
	}
	if got.Attempts != 0 {
		t.Error("administrative failure must not consume attempts")
	}
}

func TestTickCardCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{CardTTL: 10 * time.Minute})
	f.createHire(t, schedule.Interval(time.Second), 3)
	fetchesAfterCreate := f.agent.fetchCount()

	// Within the TTL the cached card is trusted.
	f.clock.Advance(time.Minute)
	f.svc.Tick(ctx)
	if f.agent.fetchCount() != fetchesAfterCreate {
		t.Error("card was refetched within TTL")
	}

	// Past the TTL it must be refreshed before use.
	f.clock.Advance(15 * time.Minute)
	f.svc.Tick(ctx)
	if f.agent.fetchCount() != fetchesAfterCreate+1 {
		t.Errorf("expected one refresh, got %d extra fetches", f.agent.fetchCount()-fetchesAfterCreate)
	}
}

func TestTickSkipsContestedJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, job := f.createHire(t, schedule.Interval(time.Minute), 3)

	// Another worker claims the job between DueJobs and ClaimJob.
	if ok, _ := f.store.ClaimJob(ctx, job.ID, "rival-worker", time.Hour, f.clock.Now()); !ok {
		t.Fatal("setup claim failed")
	}

	stats, err := f.svc.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Claimed != 0 {
		t.Fatalf("stats = %+v, want nothing claimed", stats)
	}
	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Lease.WorkerID != "rival-worker" {
		t.Error("tick stole a live lease")
	}
}

func TestTickPaymentTransport(t *testing.T) {
	ctx := context.Background()
	fa := newFakeAgent("run")
	st := memory.New()
	clock := newFakeClock(time.Now().UTC())
	payments := staticPayments{transport: markerTransport{}}
	svc := New(st, fa, fa, payments, clock, quietLogger(), Options{WorkerID: "w"})

	_, _, err := svc.CreateHire(ctx, CreateHireParams{
		AgentCardURL:  "https://agent.test/card.json",
		EntrypointKey: "run",
		Schedule:      schedule.Interval(time.Minute),
		WalletID:      "wallet-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if fa.lastTransport == nil {
		t.Error("payment transport was not attached to the invocation")
	}

	// Without a wallet the invocation goes out unauthenticated.
	fa.lastTransport = nil
	_, _, err = svc.CreateHire(ctx, CreateHireParams{
		AgentCardURL:  "https://agent.test/card.json",
		EntrypointKey: "run",
		Schedule:      schedule.Interval(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if fa.lastTransport != nil {
		t.Error("transport attached for a wallet-less hire")
	}
}

func TestTickDueQueryFailureIsLoud(t *testing.T) {
	fa := newFakeAgent("run")
	st := &failingDueStore{Store: memory.New()}
	svc := New(st, fa, fa, nil, newFakeClock(time.Now()), quietLogger(), Options{})

	if _, err := svc.Tick(context.Background()); err == nil {
		t.Fatal("expected tick to surface the due-jobs query failure")
	}
}

type failingDueStore struct {
	*memory.Store
}

func (s *failingDueStore) DueJobs(ctx context.Context, now time.Time, limit int) ([]*store.Job, error) {
	return nil, errors.New("store unreachable")
}

func TestRecoverExpiredLeases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, job := f.createHire(t, schedule.Once(f.clock.Now()), 0)

	// Simulate a worker that died mid-invocation.
	if ok, _ := f.store.ClaimJob(ctx, job.ID, "dead-worker", time.Minute, f.clock.Now()); !ok {
		t.Fatal("setup claim failed")
	}
	f.clock.Advance(5 * time.Minute)

	n, err := f.svc.RecoverExpiredLeases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("recovered %d jobs, want 1", n)
	}

	got, _ := f.store.GetJob(ctx, job.ID)
	if got.Status != store.JobStatusPending || got.Lease != nil {
		t.Fatalf("recovered job not claimable: %+v", got)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(f.clock.Now()) {
		t.Errorf("recovered job should be due immediately, next run = %v", got.NextRunAt)
	}

	// And it is indeed claimable again.
	if ok, _ := f.store.ClaimJob(ctx, job.ID, "w2", time.Minute, f.clock.Now()); !ok {
		t.Error("recovered job could not be reclaimed")
	}
}

func TestRecoverWithoutCapability(t *testing.T) {
	fa := newFakeAgent("run")
	svc := New(minimalStore{memory.New()}, fa, fa, nil, newFakeClock(time.Now()), quietLogger(), Options{})

	n, err := svc.RecoverExpiredLeases(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("recovered %d from a store without the capability", n)
	}
}

// minimalStore hides the memory store's optional capabilities.
type minimalStore struct {
	inner *memory.Store
}

func (m minimalStore) PutHire(ctx context.Context, h *store.Hire) error { return m.inner.PutHire(ctx, h) }
func (m minimalStore) GetHire(ctx context.Context, id uuid.UUID) (*store.Hire, error) {
	return m.inner.GetHire(ctx, id)
}
func (m minimalStore) PutJob(ctx context.Context, j *store.Job) error { return m.inner.PutJob(ctx, j) }
func (m minimalStore) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	return m.inner.GetJob(ctx, id)
}
func (m minimalStore) ListJobs(ctx context.Context) ([]*store.Job, error) {
	return m.inner.ListJobs(ctx)
}
func (m minimalStore) DueJobs(ctx context.Context, now time.Time, limit int) ([]*store.Job, error) {
	return m.inner.DueJobs(ctx, now, limit)
}
func (m minimalStore) ClaimJob(ctx context.Context, jobID uuid.UUID, workerID string, leaseDur time.Duration, now time.Time) (bool, error) {
	return m.inner.ClaimJob(ctx, jobID, workerID, leaseDur, now)
}

func TestTickChunkedConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Concurrency: 2})

	hire, _ := f.createHire(t, schedule.Interval(time.Minute), 3)
	for i := 0; i < 6; i++ {
		if _, err := f.svc.AddJob(ctx, hire.ID, AddJobParams{
			EntrypointKey: "run",
			Schedule:      schedule.Interval(time.Minute),
			Input:         json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := f.svc.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Due != 7 || stats.Succeeded != 7 {
		t.Fatalf("stats = %+v, want 7 due and 7 succeeded", stats)
	}
	if f.agent.invokeCount() != 7 {
		t.Errorf("invocations = %d, want 7", f.agent.invokeCount())
	}
}
