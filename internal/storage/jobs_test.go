package storage

import (
	"testing"
)

func TestJobQueue_ClaimAndComplete(t *testing.T) {
	s := openTestStore(t)

	err := s.EnqueueJob(Job{
		ID:          "job-1",
		Type:        "document_extract",
		PayloadJSON: `{"document_id":"doc-1"}`,
	})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	j, err := s.ClaimNextJob([]string{"document_extract"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if j == nil {
		t.Fatal("ClaimNextJob returned nil, want job")
	}
	if j.ID != "job-1" || j.Status != "running" {
		t.Errorf("claimed job = %+v, want job-1 running", j)
	}

	// A second claim finds nothing while the job runs.
	j2, err := s.ClaimNextJob([]string{"document_extract"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if j2 != nil {
		t.Errorf("second claim got %+v, want nil", j2)
	}

	if err := s.CompleteJob("job-1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("Status = %q, want completed", got.Status)
	}
}

// TestJobQueue_NoRetryByDefault: extraction jobs carry a single attempt, so one
// failure is terminal.
func TestJobQueue_NoRetryByDefault(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "document_extract", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"document_extract"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("job-1", "extraction blew up"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "failed" {
		t.Errorf("Status = %q, want failed (no retry)", got.Status)
	}
	if got.LastError != "extraction blew up" {
		t.Errorf("LastError = %q", got.LastError)
	}

	j, err := s.ClaimNextJob([]string{"document_extract"})
	if err != nil {
		t.Fatalf("ClaimNextJob after fail: %v", err)
	}
	if j != nil {
		t.Errorf("claimed %+v after terminal failure, want nil", j)
	}
}

func TestJobQueue_TypeFilter(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "other_type", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	j, err := s.ClaimNextJob([]string{"document_extract"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if j != nil {
		t.Errorf("claimed job of wrong type: %+v", j)
	}
}
