package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ymatsuda/rankwatch/app/database"
)

// fakeStore implements the config, history and metrics repositories against
// in-memory maps so engine behavior can be tested without a database.
type fakeStore struct {
	mu          sync.Mutex
	configs     map[string]*database.EvaluationConfig
	histories   []database.EvaluationHistory
	metrics     map[string]*database.RankingMetric
	failListFor map[string]bool
	historySeq  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:     make(map[string]*database.EvaluationConfig),
		metrics:     make(map[string]*database.RankingMetric),
		failListFor: make(map[string]bool),
	}
}

func (s *fakeStore) addConfig(config database.EvaluationConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if config.Status == "" {
		config.Status = database.ConfigStatusActive
	}
	if config.CurrentSuggestionStage == 0 {
		config.CurrentSuggestionStage = 1
	}
	s.configs[config.ID] = &config
}

func (s *fakeStore) setMetric(userID, propertyURI, contentItemID string, position *float64, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + propertyURI + "|" + contentItemID
	s.metrics[key] = &database.RankingMetric{
		UserID:        userID,
		PropertyURI:   propertyURI,
		ContentItemID: contentItemID,
		MetricDate:    date,
		Position:      position,
	}
}

func (s *fakeStore) config(id string) database.EvaluationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.configs[id]
}

func (s *fakeStore) historyRows() []database.EvaluationHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.EvaluationHistory, len(s.histories))
	copy(out, s.histories)
	return out
}

// ConfigRepository

func (s *fakeStore) Create(config database.EvaluationConfig) (string, error) {
	s.addConfig(config)
	return config.ID, nil
}

func (s *fakeStore) GetByID(id string) (*database.EvaluationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.configs[id]
	if !ok {
		return nil, nil
	}
	copied := *config
	return &copied, nil
}

func (s *fakeStore) GetByUserAndItem(userID, contentItemID string) (*database.EvaluationConfig, error) {
	return nil, nil
}

func (s *fakeStore) ListActiveByUser(userID string, contentItemID string) ([]database.EvaluationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failListFor[userID] {
		return nil, fmt.Errorf("credentials revoked for user %s", userID)
	}

	var out []database.EvaluationConfig
	for _, config := range s.configs {
		if config.UserID != userID || config.Status != database.ConfigStatusActive {
			continue
		}
		if contentItemID != "" && config.ContentItemID != contentItemID {
			continue
		}
		out = append(out, *config)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentItemID < out[j].ContentItemID })
	return out, nil
}

func (s *fakeStore) ListAllActive() ([]database.EvaluationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.EvaluationConfig
	for _, config := range s.configs {
		if config.Status == database.ConfigStatusActive {
			out = append(out, *config)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListByUser(userID string) ([]database.EvaluationConfig, error) {
	return s.ListActiveByUser(userID, "")
}

func (s *fakeStore) UpdateSchedule(id, userID string, update database.ConfigUpdate) error {
	return nil
}

func (s *fakeStore) SetStatus(id, userID string, status string) error {
	return nil
}

func (s *fakeStore) ApplyEvaluationResult(result database.EvaluationResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, ok := s.configs[result.ConfigID]
	if !ok {
		return "", fmt.Errorf("config %s not found", result.ConfigID)
	}

	position := result.CurrentPosition
	evaluatedOn := result.EvaluationDate
	config.LastSeenPosition = &position
	config.LastEvaluatedOn = &evaluatedOn
	config.CurrentSuggestionStage = result.NextStage

	s.historySeq++
	id := fmt.Sprintf("history-%d", s.historySeq)
	outcome := result.Outcome
	s.histories = append(s.histories, database.EvaluationHistory{
		ID:               id,
		UserID:           result.UserID,
		ContentItemID:    result.ContentItemID,
		EvaluationDate:   result.EvaluationDate,
		OutcomeType:      database.OutcomeTypeSuccess,
		PreviousPosition: result.PreviousPosition,
		CurrentPosition:  &position,
		Outcome:          &outcome,
	})

	return id, nil
}

// HistoryRepository

func (s *fakeStore) InsertError(userID, contentItemID string, evaluationDate time.Time, errorCode, errorMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.historySeq++
	id := fmt.Sprintf("history-%d", s.historySeq)
	s.histories = append(s.histories, database.EvaluationHistory{
		ID:             id,
		UserID:         userID,
		ContentItemID:  contentItemID,
		EvaluationDate: evaluationDate,
		OutcomeType:    database.OutcomeTypeError,
		ErrorCode:      &errorCode,
		ErrorMessage:   &errorMessage,
	})
	return id, nil
}

func (s *fakeStore) ListByUserHistories(userID string, contentItemID string, limit int) ([]database.EvaluationHistory, error) {
	return nil, nil
}

func (s *fakeStore) MarkRead(id, userID string) error {
	return nil
}

func (s *fakeStore) SetSuggestionSummary(id, summary string) error {
	return nil
}

func (s *fakeStore) CountByUser(userID string) (int, error) {
	return len(s.histories), nil
}

// MetricsRepository

func (s *fakeStore) UpsertMetrics(metrics []database.RankingMetric) error {
	return nil
}

func (s *fakeStore) LatestMetric(userID, propertyURI, contentItemID string) (*database.RankingMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metric, ok := s.metrics[userID+"|"+propertyURI+"|"+contentItemID]
	if !ok {
		return nil, nil
	}
	copied := *metric
	return &copied, nil
}

// fakeImporter fails specific calls (1-based) to simulate per-item import
// failures.
type fakeImporter struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (f *fakeImporter) Import(ctx context.Context, userID string, opts ImportOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[f.calls] {
		return fmt.Errorf("search analytics API quota exceeded")
	}
	return nil
}

// fakeDispatcher records dispatched suggestion requests.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []SuggestionRequest
	err      error
}

func (f *fakeDispatcher) Dispatch(req SuggestionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeDispatcher) dispatched() []SuggestionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SuggestionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// historyInterfaceAdapter exposes the fakeStore's history methods under the
// repository interface's method name.
type historyInterfaceAdapter struct {
	*fakeStore
}

func (a historyInterfaceAdapter) ListByUser(userID string, contentItemID string, limit int) ([]database.EvaluationHistory, error) {
	return a.fakeStore.ListByUserHistories(userID, contentItemID, limit)
}

func (a historyInterfaceAdapter) GetByID(id string) (*database.EvaluationHistory, error) {
	return nil, nil
}

// newTestEngine fixes "now" at 2024-03-10 16:00 JST (07:00 UTC) and runs
// evaluations serially so call ordering is deterministic.
func newTestEngine(store *fakeStore, importer *fakeImporter, dispatcher *fakeDispatcher) *Engine {
	engine := NewEngine(store, historyInterfaceAdapter{store}, store, importer, dispatcher, 9, 1)
	engine.now = func() time.Time {
		return time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	}
	return engine
}

func dueConfig(id, userID, item string) database.EvaluationConfig {
	return database.EvaluationConfig{
		ID:                 id,
		UserID:             userID,
		ContentItemID:      item,
		PropertyURI:        "sc-domain:example.com",
		BaseEvaluationDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CycleDays:          30,
		EvaluationHour:     0,
	}
}

func TestEngine_FirstEvaluationEstablishesBaseline(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	dispatcher := &fakeDispatcher{}
	engine := newTestEngine(store, &fakeImporter{}, dispatcher)

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", summary.Processed)
	}
	if summary.Improved != 0 || summary.Advanced != 1 {
		t.Errorf("First measurement should count as advanced, got improved=%d advanced=%d", summary.Improved, summary.Advanced)
	}

	config := store.config("c1")
	if config.LastSeenPosition == nil || *config.LastSeenPosition != 5.0 {
		t.Errorf("Expected last seen position 5.0, got %v", config.LastSeenPosition)
	}
	if config.LastEvaluatedOn == nil || config.LastEvaluatedOn.Format("2006-01-02") != "2024-03-10" {
		t.Errorf("Expected last evaluated on 2024-03-10, got %v", config.LastEvaluatedOn)
	}
	if config.CurrentSuggestionStage != 2 {
		t.Errorf("Expected stage 2 after non-improving first evaluation, got %d", config.CurrentSuggestionStage)
	}

	// The suggestion uses the pre-transition stage.
	reqs := dispatcher.dispatched()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 suggestion dispatch, got %d", len(reqs))
	}
	if reqs[0].StageUsed != 1 {
		t.Errorf("Expected suggestion for stage 1, got %d", reqs[0].StageUsed)
	}
	if reqs[0].PreviousPosition != nil {
		t.Errorf("Expected nil previous position on first evaluation")
	}
}

func TestEngine_ImprovementResetsStageAndSkipsSuggestion(t *testing.T) {
	store := newFakeStore()
	config := dueConfig("c1", "user-1", "https://example.com/a")
	config.LastSeenPosition = fptr(10.0)
	config.CurrentSuggestionStage = 3
	store.addConfig(config)
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(3.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	dispatcher := &fakeDispatcher{}
	engine := newTestEngine(store, &fakeImporter{}, dispatcher)

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Improved != 1 {
		t.Errorf("Expected 1 improved, got %d", summary.Improved)
	}

	if got := store.config("c1").CurrentSuggestionStage; got != 1 {
		t.Errorf("Expected stage reset to 1 on improvement, got %d", got)
	}

	if len(dispatcher.dispatched()) != 0 {
		t.Errorf("Expected no suggestion dispatch on improvement, got %d", len(dispatcher.dispatched()))
	}
}

func TestEngine_WorseUsesPreTransitionStage(t *testing.T) {
	store := newFakeStore()
	config := dueConfig("c1", "user-1", "https://example.com/a")
	config.LastSeenPosition = fptr(3.0)
	config.CurrentSuggestionStage = 3
	store.addConfig(config)
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(8.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	dispatcher := &fakeDispatcher{}
	engine := newTestEngine(store, &fakeImporter{}, dispatcher)

	if _, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{}); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	reqs := dispatcher.dispatched()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 suggestion dispatch, got %d", len(reqs))
	}
	if reqs[0].StageUsed != 3 {
		t.Errorf("Expected suggestion for pre-transition stage 3, got %d", reqs[0].StageUsed)
	}
	if reqs[0].Outcome != database.OutcomeWorse {
		t.Errorf("Expected worse outcome in request, got %s", reqs[0].Outcome)
	}

	if got := store.config("c1").CurrentSuggestionStage; got != 4 {
		t.Errorf("Expected stored stage 4 after escalation, got %d", got)
	}
}

func TestEngine_ImportFailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))
	store.addConfig(dueConfig("c2", "user-1", "https://example.com/b"))
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/b", fptr(7.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	// Items evaluate in content-item order with concurrency 1, so the first
	// import call is item a.
	importer := &fakeImporter{failOn: map[int]bool{1: true}}
	engine := newTestEngine(store, importer, &fakeDispatcher{})

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{Force: true})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.SkippedImportFailed != 1 {
		t.Errorf("Expected 1 import-failed skip, got %d", summary.SkippedImportFailed)
	}
	if summary.Processed != 1 {
		t.Errorf("Expected sibling item to process, got %d", summary.Processed)
	}

	// Item a's config must be untouched.
	configA := store.config("c1")
	if configA.LastEvaluatedOn != nil || configA.LastSeenPosition != nil {
		t.Errorf("Failed import must not advance the config: %+v", configA)
	}
	if configA.CurrentSuggestionStage != 1 {
		t.Errorf("Failed import must not advance the stage, got %d", configA.CurrentSuggestionStage)
	}

	// An error history row exists for item a.
	var found bool
	for _, entry := range store.historyRows() {
		if entry.ContentItemID == "https://example.com/a" {
			if entry.OutcomeType != database.OutcomeTypeError {
				t.Errorf("Expected error history entry, got %s", entry.OutcomeType)
			}
			if entry.ErrorCode == nil || *entry.ErrorCode != database.ErrorCodeImportFailed {
				t.Errorf("Expected import_failed error code, got %v", entry.ErrorCode)
			}
			found = true
		}
	}
	if !found {
		t.Error("Expected a history entry for the failed item")
	}
}

func TestEngine_NoMetricsRecordedAsError(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))
	// No metric rows at all for this item.

	engine := newTestEngine(store, &fakeImporter{}, &fakeDispatcher{})

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.SkippedNoMetrics != 1 {
		t.Errorf("Expected 1 no-metrics skip, got %d", summary.SkippedNoMetrics)
	}

	config := store.config("c1")
	if config.LastEvaluatedOn != nil {
		t.Errorf("No-metrics attempt must not advance the config")
	}

	entries := store.historyRows()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(entries))
	}
	if entries[0].ErrorCode == nil || *entries[0].ErrorCode != database.ErrorCodeNoMetrics {
		t.Errorf("Expected no_metrics error code, got %v", entries[0].ErrorCode)
	}
}

func TestEngine_BaseEvaluationDateNeverChanges(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))

	engine := newTestEngine(store, &fakeImporter{}, &fakeDispatcher{})

	positions := []float64{9.0, 4.0, 6.0}
	for _, position := range positions {
		store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(position), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
		if _, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{Force: true}); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
	}

	config := store.config("c1")
	if config.BaseEvaluationDate.Format("2006-01-02") != "2024-01-01" {
		t.Errorf("Base evaluation date changed to %s", config.BaseEvaluationDate.Format("2006-01-02"))
	}
	if config.LastSeenPosition == nil || *config.LastSeenPosition != 6.0 {
		t.Errorf("Expected last seen position 6.0, got %v", config.LastSeenPosition)
	}
}

func TestEngine_DueFilteringWithoutForce(t *testing.T) {
	store := newFakeStore()
	config := dueConfig("c1", "user-1", "https://example.com/a")
	// Evaluated yesterday: next evaluation is 30 days out.
	lastEvaluated := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	config.LastEvaluatedOn = &lastEvaluated
	store.addConfig(config)
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(5.0), lastEvaluated)

	importer := &fakeImporter{}
	engine := newTestEngine(store, importer, &fakeDispatcher{})

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Processed != 0 || importer.calls != 0 {
		t.Errorf("Not-due config must not evaluate: processed=%d imports=%d", summary.Processed, importer.calls)
	}

	// Force bypasses the due filter.
	summary, err = engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{Force: true})
	if err != nil {
		t.Fatalf("Forced sweep failed: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("Forced sweep should evaluate, got processed=%d", summary.Processed)
	}
}

func TestEngine_ItemScoping(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))
	store.addConfig(dueConfig("c2", "user-1", "https://example.com/b"))
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/b", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	engine := newTestEngine(store, &fakeImporter{}, &fakeDispatcher{})

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{
		Force:         true,
		ContentItemID: "https://example.com/a",
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("Expected only the scoped item to process, got %d", summary.Processed)
	}
	if store.config("c2").LastEvaluatedOn != nil {
		t.Error("Unscoped item must not be evaluated")
	}
}

func TestEngine_DispatchFailureDoesNotFailEvaluation(t *testing.T) {
	store := newFakeStore()
	store.addConfig(dueConfig("c1", "user-1", "https://example.com/a"))
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	dispatcher := &fakeDispatcher{err: fmt.Errorf("task queue is full")}
	engine := newTestEngine(store, &fakeImporter{}, dispatcher)

	summary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("Dispatch failure must not fail the evaluation, got processed=%d", summary.Processed)
	}
	if store.config("c1").LastEvaluatedOn == nil {
		t.Error("Evaluation should be durably recorded despite dispatch failure")
	}
}

func TestEngine_BatchUserIsolation(t *testing.T) {
	store := newFakeStore()
	for i, userID := range []string{"user-x", "user-y", "user-z"} {
		id := fmt.Sprintf("c%d", i+1)
		store.addConfig(dueConfig(id, userID, "https://example.com/a"))
		store.setMetric(userID, "sc-domain:example.com", "https://example.com/a", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	}
	store.failListFor["user-x"] = true

	engine := newTestEngine(store, &fakeImporter{}, &fakeDispatcher{})

	summary, err := engine.RunAllDueEvaluations(context.Background())
	if err != nil {
		t.Fatalf("Batch sweep failed: %v", err)
	}

	if summary.UsersProcessed != 2 {
		t.Errorf("Expected 2 users processed, got %d", summary.UsersProcessed)
	}
	if summary.TotalEvaluations != 2 {
		t.Errorf("Expected 2 evaluations, got %d", summary.TotalEvaluations)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("Expected 1 batch error, got %d: %v", len(summary.Errors), summary.Errors)
	}
	if !strings.Contains(summary.Errors[0], "user-x") {
		t.Errorf("Expected error entry referencing user-x, got %q", summary.Errors[0])
	}
}

func TestEngine_BatchRespectsEvaluationHour(t *testing.T) {
	store := newFakeStore()
	config := dueConfig("c1", "user-1", "https://example.com/a")
	// Next evaluation lands exactly on today (2024-02-09 + 30 days); the
	// test clock is fixed at 16:00 JST, before the configured hour.
	config.BaseEvaluationDate = time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	config.EvaluationHour = 20
	store.addConfig(config)
	store.setMetric("user-1", "sc-domain:example.com", "https://example.com/a", fptr(5.0), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	engine := newTestEngine(store, &fakeImporter{}, &fakeDispatcher{})

	summary, err := engine.RunAllDueEvaluations(context.Background())
	if err != nil {
		t.Fatalf("Batch sweep failed: %v", err)
	}

	if summary.TotalEvaluations != 0 || summary.UsersProcessed != 0 {
		t.Errorf("Batch must not evaluate before the configured hour: %+v", summary)
	}

	// The per-user path is deliberately coarser and evaluates the same
	// config regardless of hour.
	userSummary, err := engine.RunDueEvaluationsForUser(context.Background(), "user-1", Options{})
	if err != nil {
		t.Fatalf("User sweep failed: %v", err)
	}
	if userSummary.Processed != 1 {
		t.Errorf("Per-user sweep should evaluate on the due date at any hour, got %d", userSummary.Processed)
	}
}
