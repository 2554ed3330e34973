// Package live provides continuously-updated query results. Writers call
// Hub.Notify with the tables they changed; every subscription watching one of
// those tables re-runs its query and publishes the fresh snapshot.
package live

import (
	"context"
	"log/slog"
	"sync"
)

// Hub tracks which subscriptions watch which tables.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*watcher]struct{}
	logger   *slog.Logger
}

type watcher struct {
	dirty chan struct{}
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*watcher]struct{}),
		logger:   logger,
	}
}

// Notify marks every subscription watching any of tables as stale. It never
// blocks: repeated notifications before a refresh collapse into one.
func (h *Hub) Notify(tables ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, table := range tables {
		for w := range h.watchers[table] {
			select {
			case w.dirty <- struct{}{}:
			default:
				// Refresh already pending
			}
		}
	}
}

// WatcherCount returns the number of active subscriptions on table.
func (h *Hub) WatcherCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[table])
}

func (h *Hub) watch(w *watcher, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, table := range tables {
		set, ok := h.watchers[table]
		if !ok {
			set = make(map[*watcher]struct{})
			h.watchers[table] = set
		}
		set[w] = struct{}{}
	}
}

func (h *Hub) unwatch(w *watcher, tables []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, table := range tables {
		delete(h.watchers[table], w)
		if len(h.watchers[table]) == 0 {
			delete(h.watchers, table)
		}
	}
}

// Query produces one snapshot of a view.
type Query[T any] func(ctx context.Context) ([]T, error)

// Subscription is a live view over a query. Snapshots handed out by Current and
// Updates are shared and must not be modified.
type Subscription[T any] struct {
	hub     *Hub
	tables  []string
	w       *watcher
	query   Query[T]
	updates chan []T
	stop    context.CancelFunc
	once    sync.Once

	mu      sync.Mutex
	current []T
	closed  bool
}

// Subscribe runs query once and keeps re-running it whenever one of tables is
// notified. ctx bounds only the initial query; the subscription lives until
// Cancel is called.
func Subscribe[T any](ctx context.Context, hub *Hub, query Query[T], tables ...string) (*Subscription[T], error) {
	w := &watcher{dirty: make(chan struct{}, 1)}

	// Watch before the first read so a write racing with it still triggers a refresh.
	hub.watch(w, tables)

	snap, err := query(ctx)
	if err != nil {
		hub.unwatch(w, tables)
		return nil, err
	}

	runCtx, stop := context.WithCancel(context.Background())
	s := &Subscription[T]{
		hub:     hub,
		tables:  tables,
		w:       w,
		query:   query,
		updates: make(chan []T, 1),
		stop:    stop,
		current: snap,
	}
	go s.run(runCtx)
	return s, nil
}

// Current returns the latest snapshot.
func (s *Subscription[T]) Current() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Updates delivers each new snapshot after the initial one. Only the newest
// undelivered snapshot is kept. The channel is closed by Cancel.
func (s *Subscription[T]) Updates() <-chan []T {
	return s.updates
}

// Cancel stops the subscription. It is safe to call more than once, and once it
// returns no further snapshot is delivered.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.hub.unwatch(s.w, s.tables)
		s.stop()

		s.mu.Lock()
		s.closed = true
		select {
		case <-s.updates:
		default:
		}
		close(s.updates)
		s.mu.Unlock()
	})
}

func (s *Subscription[T]) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.w.dirty:
			snap, err := s.query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.hub.logger.Error("refresh live view", "tables", s.tables, "error", err)
				continue
			}
			s.publish(snap)
		}
	}
}

func (s *Subscription[T]) publish(snap []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.current = snap

	// Replace any snapshot the consumer has not read yet.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}
