package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/panosadamop/maqam-tab/internal/music"
)

func TestCreateAndGet(t *testing.T) {
	s := New()

	created := s.Create("job-1", "track.wav", nil)
	if created.Status != StatusPending {
		t.Errorf("new job status = %q, want %q", created.Status, StatusPending)
	}
	if created.Tempo != music.DefaultTempo {
		t.Errorf("new job tempo = %d, want %d", created.Tempo, music.DefaultTempo)
	}

	got, ok := s.Get("job-1")
	if !ok {
		t.Fatal("Get returned ok=false for existing job")
	}
	if got.ID != "job-1" || got.Source != "track.wav" {
		t.Errorf("got job %+v", got)
	}

	if _, ok := s.Get("nope"); ok {
		t.Error("Get returned ok=true for unknown id")
	}
}

func TestUpdateMissingIsNoop(t *testing.T) {
	s := New()
	called := false
	s.Update("missing", func(j *Job) { called = true })
	if called {
		t.Error("Update invoked fn for a missing job")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New()
	s.Create("job-1", "track.wav", nil)
	s.Update("job-1", func(j *Job) {
		j.Notes = []music.Note{{ID: "n0", Pitch: 60}}
	})

	snap, _ := s.Get("job-1")
	snap.Notes[0].Pitch = 99
	snap.Status = StatusDone

	again, _ := s.Get("job-1")
	if again.Notes[0].Pitch != 60 {
		t.Errorf("mutating a snapshot leaked into the store: pitch = %v", again.Notes[0].Pitch)
	}
	if again.Status != StatusPending {
		t.Errorf("mutating a snapshot leaked into the store: status = %q", again.Status)
	}
}

func TestCancel(t *testing.T) {
	s := New()
	signalled := false
	s.Create("job-1", "url", func() { signalled = true })

	if !s.Cancel("job-1") {
		t.Fatal("Cancel returned false for existing job")
	}
	if !signalled {
		t.Error("Cancel did not invoke the job's cancel func")
	}
	job, _ := s.Get("job-1")
	if job.Status != StatusCancelled {
		t.Errorf("status after cancel = %q, want %q", job.Status, StatusCancelled)
	}

	if s.Cancel("missing") {
		t.Error("Cancel returned true for unknown id")
	}
}

func TestCancelledIsSticky(t *testing.T) {
	s := New()
	s.Create("job-1", "url", nil)
	s.Cancel("job-1")

	s.SetStage("job-1", StatusAnalyzing, 40, "Analyzing audio...")
	s.SetProgress("job-1", 60, "Detecting onsets...")
	s.Fail("job-1", "boom")

	job, _ := s.Get("job-1")
	if job.Status != StatusCancelled {
		t.Errorf("status = %q, want %q", job.Status, StatusCancelled)
	}
	if job.Progress != 0 {
		t.Errorf("progress moved after cancellation: %d", job.Progress)
	}
	if job.Error != "" {
		t.Errorf("error set after cancellation: %q", job.Error)
	}
}

func TestCancelTerminalJob(t *testing.T) {
	s := New()
	signalled := false
	s.Create("job-1", "url", func() { signalled = true })
	s.Update("job-1", func(j *Job) { j.Status = StatusDone })

	s.Cancel("job-1")

	job, _ := s.Get("job-1")
	if job.Status != StatusDone {
		t.Errorf("finished job status changed to %q", job.Status)
	}
	if signalled {
		t.Error("cancel func invoked for a finished job")
	}
}

func TestFail(t *testing.T) {
	s := New()
	s.Create("job-1", "url", nil)
	s.Fail("job-1", "yt-dlp exited with code 1")

	job, _ := s.Get("job-1")
	if job.Status != StatusError {
		t.Errorf("status = %q, want %q", job.Status, StatusError)
	}
	if job.Error != "yt-dlp exited with code 1" {
		t.Errorf("error = %q", job.Error)
	}
}

func TestSweep(t *testing.T) {
	s := New()
	s.Create("old", "a.wav", nil)
	s.Create("fresh", "b.wav", nil)
	s.Update("old", func(j *Job) {
		j.CreatedAt = time.Now().Add(-MaxAge - time.Minute)
	})

	if removed := s.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d jobs, want 1", removed)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("expired job still present after sweep")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh job removed by sweep")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", n)
			s.Create(id, "src", nil)
			s.SetStage(id, StatusAnalyzing, 40, "Analyzing audio...")
			s.Get(id)
			if n%2 == 0 {
				s.Cancel(id)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len = %d, want 50", s.Len())
	}
}
