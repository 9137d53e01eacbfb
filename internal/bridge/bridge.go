// Package bridge translates the backend's named real-time events into view
// updates. Each bridge owns the single handler registration set for one
// resource domain: views subscribe under a key, and registering the same key
// again replaces the prior subscription instead of stacking a duplicate. When
// an event only announces that something changed, the bridge coalesces bursts
// into one debounced re-fetch through the resource client and delivers the
// fresh state as a synthetic refresh update. Room joins are connection-scoped
// on the backend, so the bridge re-issues them after every reconnect.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"raharpa/internal/pkg/logger"
	"raharpa/internal/transport"
)

// Policy tells the bridge what to do with an incoming event.
type Policy int

const (
	// PolicyForward delivers the event payload to subscribers directly; the
	// payload carries the full updated state.
	PolicyForward Policy = iota
	// PolicyRefetch treats the event as a delta notification and schedules a
	// debounced re-fetch through the resource client.
	PolicyRefetch
)

// RefreshEvent is the synthetic event name used when the bridge delivers
// re-fetched state after a delta notification.
const RefreshEvent = "refresh"

const (
	defaultDebounce = 500 * time.Millisecond
	fetchTimeout    = 10 * time.Second
)

// Update is what subscribers receive: either a forwarded server event or a
// refresh carrying re-fetched state.
type Update struct {
	Event     string
	Payload   json.RawMessage
	Refreshed bool
}

// Callback receives updates for a subscribed view.
type Callback func(Update)

// FetchFunc re-fetches the domain's state after a delta notification.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// RoomJoin is a room membership the bridge establishes on connect and after
// every reconnect.
type RoomJoin struct {
	Event   string
	Payload any
}

// Transport is the slice of the transport client the bridge depends on.
type Transport interface {
	On(event string, handler transport.Handler)
	Off(event string)
	Emit(event string, payload any)
	OnConnect(fn func()) func()
}

// ConnProvider hands out a shared transport connection with reference
// counting; the connection closes when the last holder releases it.
type ConnProvider interface {
	Acquire(ctx context.Context) (Transport, error)
	Release()
}

// Config describes one resource domain's bridge.
type Config struct {
	Domain   string
	Conns    ConnProvider
	Rooms    []RoomJoin
	Events   map[string]Policy
	Fetch    FetchFunc
	Debounce time.Duration
	Log      *logger.Logger
}

type subEntry struct {
	gen int
	cb  Callback
}

// Bridge owns the handler registrations and subscriptions for one resource
// domain.
type Bridge struct {
	cfg      Config
	debounce time.Duration

	mu      sync.Mutex
	subs    map[string]subEntry
	nextGen int
	tr      Transport
	unhook  func()
	timer   *time.Timer
}

// New creates a bridge for one resource domain. Nothing connects until the
// first subscriber arrives.
func New(cfg Config) *Bridge {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Bridge{
		cfg:      cfg,
		debounce: debounce,
		subs:     make(map[string]subEntry),
	}
}

// Subscribe registers a view's callback under key. The first subscriber
// acquires the shared connection, installs the named handlers, and joins the
// domain's rooms; subscribing again under the same key replaces the prior
// callback rather than firing it twice per event. The returned cancel
// function unregisters the callback; when the last subscriber cancels, the
// handlers are removed and the shared connection is released.
func (b *Bridge) Subscribe(ctx context.Context, key string, cb Callback) (func(), error) {
	b.mu.Lock()
	first := len(b.subs) == 0
	replaced := false
	if first {
		tr, err := b.cfg.Conns.Acquire(ctx)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		b.tr = tr
		b.installLocked()
	} else if _, ok := b.subs[key]; ok {
		replaced = true
	}

	b.nextGen++
	gen := b.nextGen
	b.subs[key] = subEntry{gen: gen, cb: cb}
	b.mu.Unlock()

	if first {
		b.joinRooms()
	}
	if replaced {
		b.cfg.Log.Sugar().Debugf("Replaced %s subscription %q", b.cfg.Domain, key)
	}

	return func() { b.unsubscribe(key, gen) }, nil
}

func (b *Bridge) unsubscribe(key string, gen int) {
	b.mu.Lock()
	entry, ok := b.subs[key]
	if !ok || entry.gen != gen {
		// The key was already cancelled or replaced by a newer subscription.
		b.mu.Unlock()
		return
	}
	delete(b.subs, key)
	last := len(b.subs) == 0
	if last {
		b.teardownLocked()
	}
	b.mu.Unlock()

	if last {
		b.cfg.Conns.Release()
	}
}

// installLocked registers the named handlers and the reconnect hook.
// Callers hold b.mu.
func (b *Bridge) installLocked() {
	for event, policy := range b.cfg.Events {
		event, policy := event, policy
		b.tr.On(event, func(payload json.RawMessage) {
			b.handle(event, policy, payload)
		})
	}
	b.unhook = b.tr.OnConnect(b.joinRooms)
}

// teardownLocked removes every named handler and stops pending work.
// Callers hold b.mu.
func (b *Bridge) teardownLocked() {
	for event := range b.cfg.Events {
		b.tr.Off(event)
	}
	if b.unhook != nil {
		b.unhook()
		b.unhook = nil
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.tr = nil
}

func (b *Bridge) joinRooms() {
	b.mu.Lock()
	tr := b.tr
	b.mu.Unlock()
	if tr == nil {
		return
	}
	for _, room := range b.cfg.Rooms {
		tr.Emit(room.Event, room.Payload)
	}
}

func (b *Bridge) handle(event string, policy Policy, payload json.RawMessage) {
	switch policy {
	case PolicyForward:
		b.fanout(Update{Event: event, Payload: payload})
	case PolicyRefetch:
		b.scheduleRefetch()
	}
}

// scheduleRefetch arms (or re-arms) the debounce timer so a burst of related
// delta events collapses into a single fetch after the backend has settled.
func (b *Bridge) scheduleRefetch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Reset(b.debounce)
		return
	}
	b.timer = time.AfterFunc(b.debounce, b.refetch)
}

func (b *Bridge) refetch() {
	b.mu.Lock()
	b.timer = nil
	active := len(b.subs) > 0
	b.mu.Unlock()

	if !active || b.cfg.Fetch == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	data, err := b.cfg.Fetch(ctx)
	if err != nil {
		// Subscribers keep their last known state; the next event or a
		// manual refresh will try again.
		b.cfg.Log.Sugar().Warnf("Re-fetch for %s failed: %s", b.cfg.Domain, err)
		return
	}
	b.fanout(Update{Event: RefreshEvent, Payload: data, Refreshed: true})
}

func (b *Bridge) fanout(update Update) {
	b.mu.Lock()
	callbacks := make([]Callback, 0, len(b.subs))
	for _, entry := range b.subs {
		callbacks = append(callbacks, entry.cb)
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(update)
	}
}
