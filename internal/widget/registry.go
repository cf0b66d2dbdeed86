package widget

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AskerFactory returns the Asker a widget with the given config should use.
type AskerFactory func(cfg Config) Asker

// Registry holds the widgets mounted through the host API.
type Registry struct {
	mu      sync.RWMutex
	widgets map[uuid.UUID]*Widget

	newAsker  AskerFactory
	hooks     Hooks
	logger    *zap.Logger
	keepAlive func(id uuid.UUID) bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRegistry creates a registry. When idleTTL is positive a janitor
// goroutine unmounts widgets that have not changed for that long.
func NewRegistry(newAsker AskerFactory, hooks Hooks, idleTTL time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		widgets:  make(map[uuid.UUID]*Widget),
		newAsker: newAsker,
		hooks:    hooks,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if idleTTL <= 0 {
		close(r.done)
		return r
	}

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(idleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if n := r.Sweep(idleTTL); n > 0 {
					r.logger.Info("unmounted idle widgets", zap.Int("count", n))
				}
			}
		}
	}()

	return r
}

// SetKeepAlive installs a check the janitor consults before unmounting an
// idle widget; a widget it reports as alive is kept, e.g. while a websocket
// is subscribed to it.
func (r *Registry) SetKeepAlive(fn func(id uuid.UUID) bool) {
	r.mu.Lock()
	r.keepAlive = fn
	r.mu.Unlock()
}

// Mount creates and registers a new widget.
func (r *Registry) Mount(cfg Config) *Widget {
	w := Mount(cfg, r.newAsker(cfg.withDefaults()), WithHooks(r.hooks), WithLogger(r.logger))

	r.mu.Lock()
	r.widgets[w.ID()] = w
	total := len(r.widgets)
	r.mu.Unlock()

	r.logger.Info("widget mounted",
		zap.String("widget_id", w.ID().String()),
		zap.String("tenant_id", w.Config().TenantID),
		zap.Int("total", total))
	return w
}

func (r *Registry) Get(id uuid.UUID) (*Widget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.widgets[id]
	return w, ok
}

// Unmount removes and closes a widget. It reports whether the widget existed.
func (r *Registry) Unmount(id uuid.UUID) bool {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()

	if ok {
		w.Close()
		r.logger.Info("widget unmounted", zap.String("widget_id", id.String()))
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Sweep unmounts widgets idle for longer than idle and returns how many.
// A widget with an Ask in flight is never idle, however long the Ask takes.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.RLock()
	keepAlive := r.keepAlive
	var candidates []*Widget
	for _, w := range r.widgets {
		if w.LastActive().Before(cutoff) && w.Pending() == 0 {
			candidates = append(candidates, w)
		}
	}
	r.mu.RUnlock()

	if keepAlive != nil {
		kept := candidates[:0]
		for _, w := range candidates {
			if !keepAlive(w.ID()) {
				kept = append(kept, w)
			}
		}
		candidates = kept
	}

	var stale []*Widget
	r.mu.Lock()
	for _, w := range candidates {
		// re-check: a send may have landed since the first pass
		if _, ok := r.widgets[w.ID()]; !ok || w.Pending() > 0 || !w.LastActive().Before(cutoff) {
			continue
		}
		delete(r.widgets, w.ID())
		stale = append(stale, w)
	}
	r.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	return len(stale)
}

// Close stops the janitor, unmounts everything and waits for in-flight
// requests to unwind.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
	<-r.done

	r.mu.Lock()
	all := make([]*Widget, 0, len(r.widgets))
	for id, w := range r.widgets {
		all = append(all, w)
		delete(r.widgets, id)
	}
	r.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
	for _, w := range all {
		w.Wait()
	}
}
