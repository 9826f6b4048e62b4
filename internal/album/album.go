// Package album collects the parts of a multi-part post and flushes them
// as one ordered group after a debounce interval.
package album

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"newsbot/internal/model"
)

// FlushFunc receives a flushed group, sorted ascending by item id.
type FlushFunc func(items []model.Item)

type group struct {
	mu      sync.Mutex
	items   []model.Item
	timer   *time.Timer
	flushed bool
}

// Aggregator groups items sharing a group id. The first item of a new group
// arms a one-shot debounce timer; when it fires the group is removed and
// handed to the flush callback. Stragglers arriving after the flush start a
// fresh group under the same id.
type Aggregator struct {
	debounce time.Duration
	flush    FlushFunc
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]*group
	closed  bool

	// flushes tracks in-flight flush callbacks so Close can wait for them.
	flushes sync.WaitGroup
}

// New creates an Aggregator flushing groups after the debounce interval.
func New(debounce time.Duration, flush FlushFunc, log *slog.Logger) *Aggregator {
	return &Aggregator{
		debounce: debounce,
		flush:    flush,
		log:      log,
		pending:  make(map[string]*group),
	}
}

// Handle routes an item into its pending group. It returns true if the item
// was captured and will be delivered by the flush callback, false if the
// item is standalone and the caller must process it immediately.
func (a *Aggregator) Handle(item model.Item) bool {
	if item.GroupID == "" {
		return false
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	g, ok := a.pending[item.GroupID]
	if !ok {
		g = &group{}
		a.pending[item.GroupID] = g
		id := item.GroupID
		a.flushes.Add(1)
		g.timer = time.AfterFunc(a.debounce, func() {
			defer a.flushes.Done()
			a.flushGroup(id)
		})
	}
	a.mu.Unlock()

	g.mu.Lock()
	if g.flushed {
		// Lost the race with the debounce timer: the flush already copied
		// this group, so the item must be processed standalone.
		g.mu.Unlock()
		return false
	}
	g.items = append(g.items, item)
	g.mu.Unlock()
	return true
}

// flushGroup runs on the debounce timer's goroutine.
func (a *Aggregator) flushGroup(groupID string) {
	a.mu.Lock()
	g, ok := a.pending[groupID]
	delete(a.pending, groupID)
	a.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.flushed = true
	items := make([]model.Item, len(g.items))
	copy(items, g.items)
	g.mu.Unlock()

	if len(items) == 0 {
		return
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	a.log.Info("flushing album", "group_id", groupID, "items", len(items))

	// A failing flush must never take down the timer goroutine.
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("album flush panicked", "group_id", groupID, "panic", r)
		}
	}()
	a.flush(items)
}

// PendingGroups returns the number of groups awaiting their debounce timer.
func (a *Aggregator) PendingGroups() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close stops all pending debounce timers, drops their groups, and waits
// for any flush that is already running, so a flushed group finishes its
// send and ledger commit before the caller releases resources. Items in
// unflushed groups are lost, which is acceptable at shutdown; they were
// never marked forwarded and will be reprocessed.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	for id, g := range a.pending {
		if g.timer.Stop() {
			a.flushes.Done()
		}
		delete(a.pending, id)
	}
	a.mu.Unlock()

	a.flushes.Wait()
}
