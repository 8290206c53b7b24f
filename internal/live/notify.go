package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
	"github.com/tiagowhuber/ConsultasSII/internal/view"
)

// Permission is the user's answer to showing document notifications.
type Permission int

const (
	PermissionDefault Permission = iota // never asked
	PermissionGranted
	PermissionDenied
)

// PromptFunc asks the user for notification permission. It blocks until
// the user decides; the pending event waits for the answer.
type PromptFunc func(ctx context.Context) (Permission, error)

// Notification is one visible toast.
type Notification struct {
	Tag       string
	Title     string
	Body      string
	CreatedAt time.Time
}

const defaultDismissAfter = 8 * time.Second

type toast struct {
	note  Notification
	timer *time.Timer
}

// Center turns new-record events into toasts.
//
// The first event triggers the permission prompt; a denial silences the
// center permanently and without error. Toasts dedupe on the document
// folio: a second event for the same folio replaces the visible toast
// instead of stacking. Every toast auto-dismisses after a fixed delay,
// and clicking one raises the application and dismisses it.
type Center struct {
	log          zerolog.Logger
	prompt       PromptFunc
	onRaise      func()
	dismissAfter time.Duration

	mu         sync.Mutex
	permission Permission
	active     map[string]*toast
	order      []string
	unread     int
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithPermission seeds a previously persisted permission decision.
func WithPermission(p Permission) CenterOption {
	return func(c *Center) { c.permission = p }
}

// WithRaise sets the callback invoked when the user clicks a toast.
func WithRaise(fn func()) CenterOption {
	return func(c *Center) { c.onRaise = fn }
}

// WithDismissAfter overrides the auto-dismiss delay.
func WithDismissAfter(d time.Duration) CenterOption {
	return func(c *Center) { c.dismissAfter = d }
}

// NewCenter builds a notification center. prompt may be nil, which counts
// as an immediate denial on the first event.
func NewCenter(log zerolog.Logger, prompt PromptFunc, opts ...CenterOption) *Center {
	c := &Center{
		log:          log,
		prompt:       prompt,
		dismissAfter: defaultDismissAfter,
		active:       make(map[string]*toast),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Permission reports the current decision.
func (c *Center) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Notify shows a toast for the event, asking for permission first if the
// user has never answered. A denied permission drops the event silently.
func (c *Center) Notify(ctx context.Context, event sii.NewRecordEvent) {
	if !c.ensurePermission(ctx) {
		return
	}

	tag := fmt.Sprintf("dte-%s", event.Folio)
	note := Notification{
		Tag:       tag,
		Title:     "Nuevo documento recibido",
		Body:      notificationBody(event),
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.active[tag]; ok {
		prev.timer.Stop()
		prev.note = note
		prev.timer = time.AfterFunc(c.dismissAfter, func() { c.Dismiss(tag) })
		return
	}
	c.active[tag] = &toast{
		note:  note,
		timer: time.AfterFunc(c.dismissAfter, func() { c.Dismiss(tag) }),
	}
	c.order = append(c.order, tag)
	c.unread++
}

// ensurePermission resolves PermissionDefault through the prompt.
func (c *Center) ensurePermission(ctx context.Context) bool {
	c.mu.Lock()
	perm := c.permission
	c.mu.Unlock()

	if perm != PermissionDefault {
		return perm == PermissionGranted
	}

	decided := PermissionDenied
	if c.prompt != nil {
		var err error
		decided, err = c.prompt(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("permission prompt failed")
			decided = PermissionDefault
		}
	}

	c.mu.Lock()
	if c.permission == PermissionDefault {
		c.permission = decided
	}
	granted := c.permission == PermissionGranted
	c.mu.Unlock()
	return granted
}

// Active returns the visible toasts, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, 0, len(c.order))
	for _, tag := range c.order {
		if t, ok := c.active[tag]; ok {
			out = append(out, t.note)
		}
	}
	return out
}

// Unread reports how many toasts arrived since the last MarkRead.
func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// MarkRead clears the unread counter.
func (c *Center) MarkRead() {
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
}

// Click raises the application and dismisses the clicked toast.
func (c *Center) Click(tag string) {
	if c.onRaise != nil {
		c.onRaise()
	}
	c.Dismiss(tag)
}

// Dismiss removes a toast. Unknown tags are a no-op.
func (c *Center) Dismiss(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.active[tag]
	if !ok {
		return
	}
	t.timer.Stop()
	delete(c.active, tag)
	for i, candidate := range c.order {
		if candidate == tag {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Close stops all pending dismiss timers.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.active {
		t.timer.Stop()
	}
	c.active = make(map[string]*toast)
	c.order = nil
}

func notificationBody(event sii.NewRecordEvent) string {
	monto := view.FormatCLP(sii.MontoOrZero(event.MontoTotal))
	label := event.TipoDteLabel
	if label == "" {
		label = fmt.Sprintf("Documento tipo %d", event.TipoDte)
	}
	return fmt.Sprintf("%s %s de %s por %s", label, event.Folio, event.RazonSocial, monto)
}
