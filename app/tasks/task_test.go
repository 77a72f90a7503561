package tasks

import (
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeGenerateSuggestion, "https://example.com/a")

	if task.ID == "" {
		t.Error("Expected a generated task ID")
	}
	if task.Type != TaskTypeGenerateSuggestion {
		t.Errorf("Expected type %s, got %s", TaskTypeGenerateSuggestion, task.Type)
	}
	if task.GetSubject() != "https://example.com/a" {
		t.Errorf("Expected subject to carry through, got %s", task.GetSubject())
	}
	if task.RetryCount != 0 || task.MaxRetries != DefaultMaxRetries {
		t.Errorf("Unexpected retry defaults: %d/%d", task.RetryCount, task.MaxRetries)
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeSeedConfig, "seed")

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Errorf("Expected retries exhausted after %d attempts", DefaultMaxRetries)
	}
	if task.GetRetryCount() != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got %d", DefaultMaxRetries, task.GetRetryCount())
	}
}

func TestTaskDuration(t *testing.T) {
	task := NewTask(TaskTypeBatchEvaluate, "batch")

	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before Start")
	}

	task.Start()
	time.Sleep(5 * time.Millisecond)

	if task.GetDuration() <= 0 {
		t.Error("Expected positive duration after Start")
	}
}

func TestTaskIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := NewTask(TaskTypeGenerateSuggestion, "item")
		if seen[task.ID] {
			t.Fatalf("Duplicate task ID %s", task.ID)
		}
		seen[task.ID] = true
	}
}
