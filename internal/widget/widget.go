// Package widget implements the OWL chat panel: an input, a send action that
// echoes the question and asks the chat endpoint asynchronously, and a log
// rendered as an HTML fragment.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"owl-widget/internal/models"
)

const (
	DefaultTenantID = "demo"
	DefaultTitle    = "OWL Chat"

	AuthorUser = "You"
	AuthorBot  = "Owl"
)

// Asker sends one question to the chat endpoint.
type Asker interface {
	Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)

func (f AskerFunc) Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	return f(ctx, req)
}

// Config is fixed at mount time.
type Config struct {
	// BaseURL is the chat endpoint origin; empty means same-origin.
	BaseURL  string
	TenantID string
	Title    string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.TenantID) == "" {
		c.TenantID = DefaultTenantID
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return c
}

// Result describes one resolved Ask.
type Result struct {
	WidgetID uuid.UUID
	Seq      uint64
	Request  models.ChatRequest
	Response models.ChatResponse
	Err      error
	Elapsed  time.Duration
}

// Hooks are optional callbacks. They run outside the widget lock, possibly
// from several goroutines at once.
type Hooks struct {
	OnChange func(Snapshot)
	OnResult func(Result)
}

type Option func(*Widget)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Widget) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(w *Widget) { w.hooks = h }
}

func WithID(id uuid.UUID) Option {
	return func(w *Widget) { w.id = id }
}

// Widget is one mounted panel. All methods are safe for concurrent use.
type Widget struct {
	id     uuid.UUID
	cfg    Config
	asker  Asker
	hooks  Hooks
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	log        []models.Message
	input      string
	pending    int
	seq        uint64
	version    uint64
	lastActive time.Time
	closed     bool
}

// Mount creates an independent widget instance. Mounting twice with the same
// config yields two panels that share nothing.
func Mount(cfg Config, asker Asker, opts ...Option) *Widget {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		id:         uuid.New(),
		cfg:        cfg.withDefaults(),
		asker:      asker,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("widget_id", w.id.String()))
	return w
}

func (w *Widget) ID() uuid.UUID  { return w.id }
func (w *Widget) Config() Config { return w.cfg }

// SetInput replaces the contents of the input field.
func (w *Widget) SetInput(text string) {
	w.mu.Lock()
	w.input = text
	w.lastActive = time.Now()
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.changed(snap)
}

// Send is the click handler. It returns false without side effects when the
// trimmed input is empty. Otherwise it clears the input, appends the "You"
// entry and starts the request before returning; the "Owl" entry is appended
// when that request resolves. Failed requests append nothing.
func (w *Widget) Send() bool {
	w.mu.Lock()
	q := strings.TrimSpace(w.input)
	if q == "" || w.closed {
		w.mu.Unlock()
		return false
	}
	w.input = ""
	w.seq++
	seq := w.seq
	w.appendLocked(seq, AuthorUser, q)
	w.pending++
	w.wg.Add(1)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.changed(snap)

	req := models.ChatRequest{
		TenantID: w.cfg.TenantID,
		Question: q,
		AllowWeb: false,
	}
	go w.ask(seq, req)
	return true
}

func (w *Widget) ask(seq uint64, req models.ChatRequest) {
	defer w.wg.Done()

	start := time.Now()
	resp, err := w.asker.Ask(w.ctx, req)
	res := Result{
		WidgetID: w.id,
		Seq:      seq,
		Request:  req,
		Response: resp,
		Err:      err,
		Elapsed:  time.Since(start),
	}

	w.mu.Lock()
	w.pending--
	if err == nil {
		w.appendLocked(seq, AuthorBot, resp.Answer())
	} else {
		w.version++
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("chat request failed",
			zap.Uint64("seq", seq),
			zap.String("tenant_id", req.TenantID),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err))
	} else {
		w.logger.Debug("chat request answered",
			zap.Uint64("seq", seq),
			zap.Duration("elapsed", res.Elapsed))
	}

	w.changed(snap)
	if w.hooks.OnResult != nil {
		w.hooks.OnResult(res)
	}
}

func (w *Widget) appendLocked(seq uint64, author, text string) {
	w.log = append(w.log, models.Message{
		Seq:    seq,
		Author: author,
		Text:   text,
		At:     time.Now(),
	})
	w.lastActive = time.Now()
	w.version++
}

func (w *Widget) changed(s Snapshot) {
	if w.hooks.OnChange != nil {
		w.hooks.OnChange(s)
	}
}

// Wait blocks until every in-flight request has resolved.
func (w *Widget) Wait() {
	w.wg.Wait()
}

// Close cancels in-flight requests and rejects further sends.
func (w *Widget) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
}

// Pending reports how many Asks are still in flight.
func (w *Widget) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// LastActive reports when the widget last changed.
func (w *Widget) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Snapshot is a consistent copy of the widget state.
type Snapshot struct {
	ID       uuid.UUID
	Title    string
	Messages []models.Message
	Input    string
	Pending  int
	Version  uint64
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	msgs := make([]models.Message, len(w.log))
	copy(msgs, w.log)
	return Snapshot{
		ID:       w.id,
		Title:    w.cfg.Title,
		Messages: msgs,
		Input:    w.input,
		Pending:  w.pending,
		Version:  w.version,
	}
}

func (s Snapshot) View() View {
	return View{
		ID:       s.ID.String(),
		Title:    s.Title,
		Messages: s.Messages,
		Pending:  s.Pending,
	}
}

// HTML renders the snapshot.
func (s Snapshot) HTML() string {
	return Render(s.View())
}

// Model converts the snapshot to its wire form.
func (s Snapshot) Model() models.WidgetSnapshot {
	return models.WidgetSnapshot{
		Type:     "snapshot",
		ID:       s.ID.String(),
		Version:  s.Version,
		Messages: s.Messages,
		Input:    s.Input,
		Pending:  s.Pending,
		HTML:     s.HTML(),
	}
}
