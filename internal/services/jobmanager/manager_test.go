package jobmanager

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/storage/memory"
	"github.com/gorilla/websocket"
)

// --- mocks ---

type mockLedger struct {
	interfaces.LedgerService

	mu       sync.Mutex
	calls    int
	failures []error // returned in order before succeeding
	users    []string
}

func (m *mockLedger) RecoverPortfolio(ctx context.Context, portfolioID string) (*models.RecoveryReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.users = append(m.users, common.ResolveUserID(ctx))
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return &models.RecoveryReport{PortfolioID: portfolioID}, nil
}

func (m *mockLedger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSuggestions struct {
	interfaces.SuggestionService
	calls []string
	users []string
}

func (m *mockSuggestions) GenerateSuggestions(ctx context.Context, portfolioID string) ([]*models.SuggestedTrade, error) {
	m.calls = append(m.calls, portfolioID)
	m.users = append(m.users, common.ResolveUserID(ctx))
	return []*models.SuggestedTrade{{ID: "s1"}}, nil
}

type mockQuotes struct {
	interfaces.QuoteService
	refreshes int
}

func (m *mockQuotes) RefreshHeld(context.Context) (int, error) {
	m.refreshes++
	return 3, nil
}

type harness struct {
	jm          *JobManager
	store       *memory.Manager
	ledger      *mockLedger
	suggestions *mockSuggestions
	quotes      *mockQuotes
}

func newHarness(config common.JobsConfig) *harness {
	logger := common.NewSilentLogger()
	h := &harness{
		store:       memory.NewManager(logger),
		ledger:      &mockLedger{},
		suggestions: &mockSuggestions{},
		quotes:      &mockQuotes{},
	}
	h.jm = NewJobManager(h.ledger, h.suggestions, h.quotes, h.store, logger, config)
	return h
}

func asUser(id string) context.Context {
	return common.WithUserContext(context.Background(), &common.UserContext{UserID: id})
}

func asAdmin() context.Context {
	return common.WithUserContext(context.Background(), &common.UserContext{UserID: "root", Role: common.RoleAdmin})
}

// waitForJob polls until the job reaches a final status.
func waitForJob(t *testing.T, h *harness, id string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs, _ := h.jm.ListJobs(asAdmin(), models.JobFilter{})
		for _, j := range jobs {
			if j.ID == id && (j.Status == models.JobStatusCompleted || j.Status == models.JobStatusFailed) {
				return j
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

// --- tests ---

func TestJobManager_StartStop(t *testing.T) {
	h := newHarness(common.JobsConfig{MaxConcurrent: 1, PollInterval: "10ms"})

	h.jm.Start()
	if !h.jm.Running() {
		t.Error("expected manager to be running after Start()")
	}

	// Restart is allowed
	h.jm.Start()
	if !h.jm.Running() {
		t.Error("expected manager to be running after second Start()")
	}

	h.jm.Stop()
	if h.jm.Running() {
		t.Error("expected manager to be stopped after Stop()")
	}
	h.jm.Stop()
}

func TestJobManager_Enqueue(t *testing.T) {
	h := newHarness(common.JobsConfig{MaxRetries: 4})

	job, err := h.jm.Enqueue(asUser("alice"), models.JobTypeGenerateSuggestions, "pf-1")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", job.OwnerID)
	}
	if job.Priority != models.PriorityGenerateSuggestions {
		t.Errorf("priority = %d, want %d", job.Priority, models.PriorityGenerateSuggestions)
	}
	if job.MaxAttempts != 4 {
		t.Errorf("max attempts = %d, want 4", job.MaxAttempts)
	}
	if job.ID == "" {
		t.Error("expected job id to be assigned")
	}

	tests := []struct {
		name        string
		jobType     string
		portfolioID string
	}{
		{"unknown type", "collect_eod", "pf-1"},
		{"generate without portfolio", models.JobTypeGenerateSuggestions, ""},
		{"reconcile without portfolio", models.JobTypeReconcilePortfolio, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.jm.Enqueue(context.Background(), tt.jobType, tt.portfolioID)
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	if _, err := h.jm.Enqueue(context.Background(), models.JobTypeRefreshPrices, ""); err != nil {
		t.Errorf("global refresh job rejected: %v", err)
	}
}

func TestJobManager_EnqueueIfNeeded_Dedup(t *testing.T) {
	h := newHarness(common.JobsConfig{})
	ctx := context.Background()

	added, err := h.jm.EnqueueIfNeeded(ctx, models.JobTypeReconcilePortfolio, "pf-1")
	if err != nil || !added {
		t.Fatalf("first enqueue: added=%v err=%v", added, err)
	}
	added, err = h.jm.EnqueueIfNeeded(ctx, models.JobTypeReconcilePortfolio, "pf-1")
	if err != nil || added {
		t.Fatalf("second enqueue should be deduped: added=%v err=%v", added, err)
	}
	added, _ = h.jm.EnqueueIfNeeded(ctx, models.JobTypeGenerateSuggestions, "pf-1")
	if !added {
		t.Error("different job type should not be deduped")
	}

	pending, _ := h.store.JobQueueStore().CountPending(ctx)
	if pending != 2 {
		t.Errorf("expected 2 pending jobs, got %d", pending)
	}
}

func TestJobManager_ExecuteJob(t *testing.T) {
	h := newHarness(common.JobsConfig{})
	ctx := context.Background()

	if err := h.jm.executeJob(ctx, &models.Job{JobType: models.JobTypeGenerateSuggestions, PortfolioID: "pf-1", OwnerID: "alice"}); err != nil {
		t.Errorf("generate: %v", err)
	}
	if len(h.suggestions.calls) != 1 || h.suggestions.calls[0] != "pf-1" {
		t.Errorf("generate calls = %v", h.suggestions.calls)
	}
	if h.suggestions.users[0] != "alice" {
		t.Errorf("generate ran as %q, want the job owner", h.suggestions.users[0])
	}

	if err := h.jm.executeJob(ctx, &models.Job{JobType: models.JobTypeReconcilePortfolio, PortfolioID: "pf-1"}); err != nil {
		t.Errorf("reconcile: %v", err)
	}
	if h.ledger.callCount() != 1 {
		t.Errorf("reconcile calls = %d", h.ledger.callCount())
	}

	if err := h.jm.executeJob(ctx, &models.Job{JobType: models.JobTypeRefreshPrices}); err != nil {
		t.Errorf("refresh: %v", err)
	}
	if h.quotes.refreshes != 1 {
		t.Errorf("refreshes = %d", h.quotes.refreshes)
	}

	err := h.jm.executeJob(ctx, &models.Job{JobType: "bogus"})
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("unknown type: expected ErrInvalidArgument, got %v", err)
	}
}

func TestJobManager_ReconcileReportsUnresumedEntries(t *testing.T) {
	h := newHarness(common.JobsConfig{})
	h.jm.ledger = &failedReportLedger{}

	err := h.jm.executeJob(context.Background(), &models.Job{JobType: models.JobTypeReconcilePortfolio, PortfolioID: "pf-1"})
	if err == nil || !strings.Contains(err.Error(), "could not be resumed") {
		t.Errorf("expected unresumed entries error, got %v", err)
	}
}

type failedReportLedger struct {
	interfaces.LedgerService
}

func (failedReportLedger) RecoverPortfolio(_ context.Context, id string) (*models.RecoveryReport, error) {
	return &models.RecoveryReport{PortfolioID: id, Failed: []string{"op-1"}}, nil
}

func TestJobManager_ProcessesQueue(t *testing.T) {
	h := newHarness(common.JobsConfig{MaxConcurrent: 2, PollInterval: "10ms"})
	h.jm.Start()
	defer h.jm.Stop()

	job, err := h.jm.Enqueue(asUser("alice"), models.JobTypeReconcilePortfolio, "pf-1")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := waitForJob(t, h, job.ID)
	if done.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed (error %q)", done.Status, done.Error)
	}
	if done.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", done.Attempts)
	}
}

func TestJobManager_RetriesTransientFailures(t *testing.T) {
	h := newHarness(common.JobsConfig{MaxConcurrent: 1, MaxRetries: 3, PollInterval: "10ms"})
	h.ledger.failures = []error{models.ErrUpstreamUnavailable, errors.New("connection reset")}
	h.jm.Start()
	defer h.jm.Stop()

	job, _ := h.jm.Enqueue(context.Background(), models.JobTypeReconcilePortfolio, "pf-1")
	done := waitForJob(t, h, job.ID)

	if done.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", done.Attempts)
	}
	if h.ledger.callCount() != 3 {
		t.Errorf("ledger calls = %d, want 3", h.ledger.callCount())
	}
}

func TestJobManager_FinalErrorsAreNotRetried(t *testing.T) {
	h := newHarness(common.JobsConfig{MaxConcurrent: 1, MaxRetries: 3, PollInterval: "10ms"})
	h.ledger.failures = []error{models.ErrNotFound}
	h.jm.Start()
	defer h.jm.Stop()

	job, _ := h.jm.Enqueue(context.Background(), models.JobTypeReconcilePortfolio, "gone")
	done := waitForJob(t, h, job.ID)

	if done.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", done.Status)
	}
	if done.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", done.Attempts)
	}
}

func TestJobManager_SweepIncomplete(t *testing.T) {
	h := newHarness(common.JobsConfig{})
	ctx := context.Background()

	ops := []*models.LedgerOperation{
		{ID: "op-1", PortfolioID: "pf-1", Kind: models.OpOpenPosition, Stage: models.StagePositionWritten},
		{ID: "op-2", PortfolioID: "pf-1", Kind: models.OpOpenPosition, Stage: models.StageStarted},
		{ID: "op-3", PortfolioID: "pf-2", Kind: models.OpOpenPosition, Stage: models.StageCompleted},
	}
	for _, op := range ops {
		if err := h.store.OperationStore().Save(ctx, op); err != nil {
			t.Fatalf("save op: %v", err)
		}
	}

	n, err := h.jm.SweepIncomplete(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("queued = %d, want 1", n)
	}

	jobs, _ := h.jm.ListJobs(asAdmin(), models.JobFilter{Limit: 10})
	if len(jobs) != 1 || jobs[0].PortfolioID != "pf-1" || jobs[0].OwnerID != common.SystemUserID {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	if n, _ := h.jm.SweepIncomplete(ctx); n != 0 {
		t.Errorf("second sweep queued %d, want 0", n)
	}
}

func TestJobManager_Cleanup(t *testing.T) {
	h := newHarness(common.JobsConfig{})
	ctx := context.Background()

	job, _ := h.jm.Enqueue(ctx, models.JobTypeRefreshPrices, "")
	if err := h.store.JobQueueStore().Complete(ctx, job.ID, nil, 5); err != nil {
		t.Fatalf("complete: %v", err)
	}
	pending, _ := h.jm.Enqueue(ctx, models.JobTypeReconcilePortfolio, "pf-1")

	done := time.Now().Add(-time.Hour)
	if err := h.store.OperationStore().Save(ctx, &models.LedgerOperation{ID: "old", PortfolioID: "pf-1", Stage: models.StageCompleted, UpdatedAt: done, CompletedAt: &done}); err != nil {
		t.Fatalf("save op: %v", err)
	}

	h.jm.Cleanup(ctx, -time.Minute)

	jobs, _ := h.jm.ListJobs(asAdmin(), models.JobFilter{Limit: 10})
	if len(jobs) != 1 || jobs[0].ID != pending.ID {
		t.Errorf("expected only the pending job to remain, got %+v", jobs)
	}
	if _, err := h.store.OperationStore().Get(ctx, "old"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected finished operation to be purged, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{models.ErrUpstreamUnavailable, true},
		{&models.PartialFailureError{OperationID: "op", Err: errors.New("io")}, true},
		{models.ErrNotFound, false},
		{models.ErrForbidden, false},
		{models.ErrInvalidArgument, false},
		{models.ErrInvalidStateTransition, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEventHub_PublishNoClients(t *testing.T) {
	hub := NewEventHub(common.NewSilentLogger())
	// Must not block or panic
	hub.Publish(models.JobEvent{Type: models.JobEventQueued, Job: &models.Job{ID: "j"}})
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	hub.Close()
}

func TestEventHub_FiltersBySubscription(t *testing.T) {
	hub := NewEventHub(common.NewSilentLogger())
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, Subscription{OwnerID: "alice"})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Publish(models.JobEvent{Type: models.JobEventQueued, Job: &models.Job{ID: "bobs", OwnerID: "bob"}})
	hub.Publish(models.JobEvent{Type: models.JobEventQueued, Job: &models.Job{ID: "alices", OwnerID: "alice"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), `"id":"alices"`) {
		t.Errorf("expected alice's job event first, got %s", msg)
	}
}

func TestSubscription_Accepts(t *testing.T) {
	job := &models.Job{OwnerID: "alice", PortfolioID: "pf-1"}
	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"owner", Subscription{OwnerID: "alice"}, true},
		{"other owner", Subscription{OwnerID: "bob"}, false},
		{"portfolio match", Subscription{OwnerID: "bob", PortfolioID: "pf-1"}, true},
		{"portfolio mismatch", Subscription{OwnerID: "alice", PortfolioID: "pf-2"}, false},
		{"admin all", Subscription{All: true}, true},
		{"admin other portfolio", Subscription{All: true, PortfolioID: "pf-9"}, false},
	}
	for _, tt := range tests {
		if got := tt.sub.accepts(job); got != tt.want {
			t.Errorf("%s: accepts = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestJobManager_ListJobsScopedToOwner(t *testing.T) {
	h := newHarness(common.JobsConfig{})

	if _, err := h.jm.Enqueue(asUser("alice"), models.JobTypeReconcilePortfolio, "pf-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := h.jm.Enqueue(asUser("bob"), models.JobTypeReconcilePortfolio, "pf-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	jobs, err := h.jm.ListJobs(asUser("alice"), models.JobFilter{OwnerID: "bob"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].OwnerID != "alice" {
		t.Errorf("alice should only see her own job, got %+v", jobs)
	}

	all, _ := h.jm.ListJobs(asAdmin(), models.JobFilter{})
	if len(all) != 2 {
		t.Errorf("admin sees %d jobs, want 2", len(all))
	}

	byPortfolio, _ := h.jm.ListJobs(asAdmin(), models.JobFilter{PortfolioID: "pf-2"})
	if len(byPortfolio) != 1 || byPortfolio[0].OwnerID != "bob" {
		t.Errorf("unexpected portfolio filter result: %+v", byPortfolio)
	}
}
