// Package download drives bulk download of selected artifacts, one at a
// time, reporting progress and tolerating per-item failure.
package download

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/glanburn/music-manager/internal/model"
)

var (
	// ErrNothingSelected is returned by Start when the selection is empty.
	// Callers surface it as a warning, not a failure.
	ErrNothingSelected = errors.New("no artifacts selected")
	// ErrBatchActive is returned by Start while a batch is already running.
	ErrBatchActive = errors.New("a download batch is already running")
)

// Default pauses between items. Download triggers in the consuming
// environment are asynchronous and rate-sensitive; spacing them out keeps
// the host from silently dropping near-simultaneous saves.
const (
	DefaultSuccessDelay = 2 * time.Second
	DefaultFailureDelay = 1 * time.Second
)

// Summary is emitted exactly once per batch, after the last item.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Orchestrator owns the selection and the batch state. Exactly one batch
// may run at a time; items are processed strictly in selection order with
// no parallelism.
type Orchestrator struct {
	locator Locator
	saver   Saver
	log     *slog.Logger

	// SuccessDelay and FailureDelay are the pauses taken after an item
	// completes or fails. Tests set them to zero.
	SuccessDelay time.Duration
	FailureDelay time.Duration

	// OnProgress, if set, is called after every item with the cursor,
	// total and rounded percentage.
	OnProgress func(cursor, total, percent int)
	// OnDone, if set, receives the batch summary exactly once.
	OnDone func(Summary)

	mu         sync.Mutex
	candidates map[string]model.Artifact
	selected   []string // ordered; uniqueness enforced by ToggleSelection
	active     bool
	cursor     int
	total      int
}

// New creates an Orchestrator with the default inter-item delays.
func New(locator Locator, saver Saver, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		locator:      locator,
		saver:        saver,
		log:          log,
		SuccessDelay: DefaultSuccessDelay,
		FailureDelay: DefaultFailureDelay,
		candidates:   make(map[string]model.Artifact),
	}
}

// SetCandidates replaces the visible candidate list. Selections referring
// to artifacts no longer present are dropped.
func (o *Orchestrator) SetCandidates(artifacts []model.Artifact) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.candidates = make(map[string]model.Artifact, len(artifacts))
	for _, a := range artifacts {
		o.candidates[a.ID] = a
	}
	kept := o.selected[:0]
	for _, id := range o.selected {
		if _, ok := o.candidates[id]; ok {
			kept = append(kept, id)
		}
	}
	o.selected = kept
}

// ToggleSelection adds the id to the selection if absent, else removes it.
func (o *Orchestrator) ToggleSelection(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sel := range o.selected {
		if sel == id {
			o.selected = append(o.selected[:i], o.selected[i+1:]...)
			return
		}
	}
	o.selected = append(o.selected, id)
}

// SelectAll selects every candidate, in candidate-list order.
func (o *Orchestrator) SelectAll(ids []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = o.selected[:0]
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := o.candidates[id]; ok && !seen[id] {
			o.selected = append(o.selected, id)
			seen[id] = true
		}
	}
}

// Clear empties the selection.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = o.selected[:0]
}

// Selected returns a copy of the current selection.
func (o *Orchestrator) Selected() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.selected))
	copy(out, o.selected)
	return out
}

// Active reports whether a batch is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Progress returns the current cursor, total and rounded percentage.
func (o *Orchestrator) Progress() (cursor, total, percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor, o.total, percentOf(o.cursor, o.total)
}

// Start runs the batch over the current selection, blocking until the last
// item has been attempted. It returns ErrNothingSelected or ErrBatchActive
// without touching state; per-item failures are logged and skipped, never
// returned. Cancelling ctx stops before the next item and resets to idle.
func (o *Orchestrator) Start(ctx context.Context) (Summary, error) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return Summary{}, ErrBatchActive
	}
	if len(o.selected) == 0 {
		o.mu.Unlock()
		return Summary{}, ErrNothingSelected
	}
	batch := make([]string, len(o.selected))
	copy(batch, o.selected)
	o.active = true
	o.cursor = 0
	o.total = len(batch)
	o.mu.Unlock()

	summary := Summary{Total: len(batch)}
	for i, id := range batch {
		if err := ctx.Err(); err != nil {
			o.reset()
			return summary, err
		}

		if err := o.downloadOne(ctx, id); err != nil {
			summary.Failed++
			o.log.Warn("artifact download failed", "artifact_id", id, "error", err)
			o.advance(i + 1)
			o.wait(ctx, o.FailureDelay, i+1 == len(batch))
			continue
		}

		summary.Succeeded++
		o.advance(i + 1)
		o.wait(ctx, o.SuccessDelay, i+1 == len(batch))
	}

	o.reset()
	o.log.Info("download batch finished",
		"total", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed)
	if o.OnDone != nil {
		o.OnDone(summary)
	}
	return summary, nil
}

func (o *Orchestrator) downloadOne(ctx context.Context, id string) error {
	o.mu.Lock()
	art, ok := o.candidates[id]
	o.mu.Unlock()
	if !ok {
		return errors.New("artifact not in candidate list")
	}

	url, err := o.locator.Resolve(ctx, art.StorageID)
	if err != nil {
		return err
	}
	return o.saver.Save(ctx, url, art.FileName())
}

// advance moves the cursor and reports progress.
func (o *Orchestrator) advance(cursor int) {
	o.mu.Lock()
	o.cursor = cursor
	total := o.total
	o.mu.Unlock()
	if o.OnProgress != nil {
		o.OnProgress(cursor, total, percentOf(cursor, total))
	}
}

// wait pauses between items. The pause after the final item is skipped:
// there is nothing left to space out.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration, last bool) {
	if last || d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// reset returns the orchestrator to idle. The selection is consumed by the
// batch, successful or not.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.active = false
	o.cursor = 0
	o.total = 0
	o.selected = o.selected[:0]
	o.mu.Unlock()
}

func percentOf(cursor, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(cursor) / float64(total) * 100))
}
