package download

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glanburn/music-manager/internal/model"
)

// mockLocator resolves storage ids to fake URLs, failing for configured ids.
type mockLocator struct {
	mu       sync.Mutex
	failFor  map[string]bool
	resolved []string
}

func (m *mockLocator) Resolve(_ context.Context, storageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, storageID)
	if m.failFor[storageID] {
		return "", errors.New("not found")
	}
	return "https://files.test/" + storageID, nil
}

// mockSaver records save calls.
type mockSaver struct {
	mu    sync.Mutex
	saved []string // filenames
	fail  bool
}

func (m *mockSaver) Save(_ context.Context, _, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("save failed")
	}
	m.saved = append(m.saved, filename)
	return nil
}

func makeArtifact(id string) model.Artifact {
	return model.Artifact{
		ID:           id,
		StorageID:    "stor-" + id,
		DisplayName:  "2024-open-junior-free-" + id,
		OriginalName: "My Song.mp3",
	}
}

func newTestOrchestrator(locator Locator, saver Saver) *Orchestrator {
	o := New(locator, saver, nil)
	o.SuccessDelay = 0
	o.FailureDelay = 0
	return o
}

func TestToggleSelection(t *testing.T) {
	o := newTestOrchestrator(&mockLocator{}, &mockSaver{})
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b")})

	o.ToggleSelection("a")
	o.ToggleSelection("b")
	if got := o.Selected(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Selected = %v, want [a b]", got)
	}

	// Toggling an already-selected id removes it.
	o.ToggleSelection("a")
	if got := o.Selected(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Selected after re-toggle = %v, want [b]", got)
	}
}

func TestSelectAllAndClear(t *testing.T) {
	o := newTestOrchestrator(&mockLocator{}, &mockSaver{})
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b"), makeArtifact("c")})

	o.SelectAll([]string{"a", "b", "c", "c", "unknown"})
	if got := o.Selected(); len(got) != 3 {
		t.Errorf("SelectAll selected %v, want 3 ids", got)
	}

	o.Clear()
	if got := o.Selected(); len(got) != 0 {
		t.Errorf("Selected after Clear = %v, want empty", got)
	}
}

func TestStart_EmptySelection(t *testing.T) {
	o := newTestOrchestrator(&mockLocator{}, &mockSaver{})

	_, err := o.Start(context.Background())
	if !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("Start err = %v, want ErrNothingSelected", err)
	}
	if o.Active() {
		t.Error("orchestrator should stay idle")
	}
}

func TestStart_AllSucceed(t *testing.T) {
	loc := &mockLocator{}
	sav := &mockSaver{}
	o := newTestOrchestrator(loc, sav)
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b"), makeArtifact("c")})
	o.SelectAll([]string{"a", "b", "c"})

	var percents []int
	o.OnProgress = func(_, _, percent int) { percents = append(percents, percent) }
	var done []Summary
	o.OnDone = func(s Summary) { done = append(done, s) }

	sum, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Total != 3 || sum.Succeeded != 3 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want 3/3/0", sum)
	}
	if len(sav.saved) != 3 {
		t.Errorf("saved %d files, want 3", len(sav.saved))
	}
	// DisplayName is extension-less; the original extension is re-attached.
	if sav.saved[0] != "2024-open-junior-free-a.mp3" {
		t.Errorf("saved filename = %q", sav.saved[0])
	}

	// Progress is monotonic and ends at exactly 100.
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress not monotonic: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final percent = %d, want 100", percents[len(percents)-1])
	}

	// Summary fires exactly once.
	if len(done) != 1 {
		t.Errorf("OnDone fired %d times, want 1", len(done))
	}
}

func TestStart_PartialFailureContinues(t *testing.T) {
	loc := &mockLocator{failFor: map[string]bool{"stor-b": true}}
	sav := &mockSaver{}
	o := newTestOrchestrator(loc, sav)
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b"), makeArtifact("c")})
	o.SelectAll([]string{"a", "b", "c"})

	var lastCursor int
	o.OnProgress = func(cursor, _, _ int) { lastCursor = cursor }

	sum, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Total != 3 || sum.Succeeded != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 3/2/1", sum)
	}
	// Every item is attempted: the failed resolve does not abort the batch.
	if len(loc.resolved) != 3 {
		t.Errorf("resolved %d items, want 3", len(loc.resolved))
	}
	if lastCursor != 3 {
		t.Errorf("final cursor = %d, want 3", lastCursor)
	}
}

func TestStart_ExclusiveWhileActive(t *testing.T) {
	loc := &mockLocator{}
	sav := &mockSaver{}
	o := newTestOrchestrator(loc, sav)
	o.SetCandidates([]model.Artifact{makeArtifact("a")})
	o.SelectAll([]string{"a"})

	// Second Start from the progress callback sees the batch active.
	var second error
	o.OnProgress = func(_, _, _ int) {
		_, second = o.Start(context.Background())
	}

	if _, err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !errors.Is(second, ErrBatchActive) {
		t.Errorf("concurrent Start err = %v, want ErrBatchActive", second)
	}
}

func TestStart_Cancelled(t *testing.T) {
	loc := &mockLocator{}
	sav := &mockSaver{}
	o := newTestOrchestrator(loc, sav)
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b")})
	o.SelectAll([]string{"a", "b"})

	ctx, cancel := context.WithCancel(context.Background())
	o.OnProgress = func(cursor, _, _ int) {
		if cursor == 1 {
			cancel()
		}
	}

	_, err := o.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start err = %v, want context.Canceled", err)
	}
	if o.Active() {
		t.Error("orchestrator should return to idle after cancellation")
	}
	if len(loc.resolved) != 1 {
		t.Errorf("resolved %d items after cancel, want 1", len(loc.resolved))
	}
}

func TestStart_SaveFailureCounted(t *testing.T) {
	loc := &mockLocator{}
	sav := &mockSaver{fail: true}
	o := newTestOrchestrator(loc, sav)
	o.SetCandidates([]model.Artifact{makeArtifact("a"), makeArtifact("b")})
	o.SelectAll([]string{"a", "b"})

	sum, err := o.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Failed != 2 || sum.Succeeded != 0 {
		t.Errorf("summary = %+v, want 0 succeeded, 2 failed", sum)
	}
}
