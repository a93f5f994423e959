// Package notify keeps the signed-in user's notification list fresh by
// polling the LMS, and applies read markers optimistically.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
)

// DefaultInterval is the time between two background fetches.
const DefaultInterval = 30 * time.Second

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// errStopped is returned by Sync when the poller was started or stopped
// while the fetch was in flight.
var errStopped = errors.New("poller restarted during fetch; result discarded")

// API is the part of the LMS backend the poller talks to.
type API interface {
	ListNotifications(ctx context.Context) ([]model.NotificationItem, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Snapshotter stores the list the last successful poll saw.
type Snapshotter interface {
	SaveNotificationSnapshot(ctx context.Context, items []model.NotificationItem, fetchedAt time.Time) error
}

// PollState represents the current state of the poll loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollRunning:
		return "running"
	case PollError:
		return "error"
	default:
		return "unknown"
	}
}

// Status holds the state of the most recent fetch.
type Status struct {
	State    PollState
	LastSync time.Time
	Error    error
}

// UpdateMsg is a tea.Msg sent whenever the cached list or its counts change.
type UpdateMsg struct {
	Unread         int
	UnreadMessages int

	// Err is set when a background fetch failed; it is retried next tick.
	Err error

	// Warning is set when the server rejected a read marker and the local
	// flag was reverted.
	Warning error
}

// Options configures a Poller.
type Options struct {
	// Interval between fetches; DefaultInterval when zero.
	Interval time.Duration

	// Active is consulted before every scheduled fetch. Once it reports
	// false the poller stops itself.
	Active func() bool

	Snapshots Snapshotter
	Logger    logging.Logger
}

// Poller fetches notifications on a fixed interval into a Cache.
type Poller struct {
	api       API
	cache     *Cache
	snapshots Snapshotter
	logger    logging.Logger
	interval  time.Duration
	active    func() bool

	updates   chan UpdateMsg
	triggerCh chan struct{}

	mu      sync.Mutex
	running bool
	// epoch changes on every Start and Stop; fetch results carrying an
	// older epoch are discarded.
	epoch  uint64
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// New creates a stopped Poller.
func New(api API, opts Options) *Poller {
	p := &Poller{
		api:       api,
		cache:     NewCache(),
		snapshots: opts.Snapshots,
		logger:    opts.Logger,
		interval:  opts.Interval,
		active:    opts.Active,
		updates:   make(chan UpdateMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	return p
}

// Start fetches immediately and then on every interval until Stop is
// called or the session becomes inactive. It does nothing unless
// sessionActive is true or if the poller is already running. The returned
// command delivers the first UpdateMsg.
func (p *Poller) Start(sessionActive bool) tea.Cmd {
	if !sessionActive {
		return nil
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.epoch++
	epoch := p.epoch
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	go p.loop(ctx, epoch, done)

	return p.WaitForUpdate()
}

// Stop cancels the timer and any fetch in flight, and returns once the
// poll goroutine has exited. A result arriving after Stop is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.epoch++
	cancel, done := p.cancel, p.done
	p.status.State = PollIdle
	p.mu.Unlock()

	cancel()
	<-done
}

// Reset stops polling and forgets the cached list, as on logout.
func (p *Poller) Reset() {
	p.Stop()
	p.cache.Replace(nil)
	p.sendUpdate(p.counts())
}

// Running reports whether the poll loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refresh triggers an immediate fetch on a running poller.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// Sync performs one fetch on the caller's goroutine whether or not the
// poller is running.
func (p *Poller) Sync(ctx context.Context) error {
	p.mu.Lock()
	epoch := p.epoch
	p.mu.Unlock()

	return p.fetch(ctx, epoch)
}

// Status returns the state of the most recent fetch.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Items returns the cached notifications in server order.
func (p *Poller) Items() []model.NotificationItem {
	return p.cache.Items()
}

// UnreadCount is the number of unread cached notifications.
func (p *Poller) UnreadCount() int {
	return p.cache.UnreadCount()
}

// UnreadMessageCount is the number of unread cached message notifications.
func (p *Poller) UnreadMessageCount() int {
	return p.cache.UnreadMessageCount()
}

// MarkRead flips the item to read locally before the server confirms. If
// the server rejects it the flag is reverted, an UpdateMsg carrying the
// warning is sent, and the error is returned.
func (p *Poller) MarkRead(ctx context.Context, id string) error {
	changed, version := p.cache.MarkRead(id)
	if changed {
		p.sendUpdate(p.counts())
	}

	if err := p.api.MarkNotificationRead(ctx, id); err != nil {
		err = fmt.Errorf("marking notification %s read: %w", id, err)
		if changed {
			p.revert([]string{id}, version, err)
		}
		return err
	}
	return nil
}

// MarkAllRead flips every item to read locally, then tells the server.
// Failure reverts the items this call flipped.
func (p *Poller) MarkAllRead(ctx context.Context) error {
	flipped, version := p.cache.MarkAllRead()
	if len(flipped) > 0 {
		p.sendUpdate(p.counts())
	}

	if err := p.api.MarkAllNotificationsRead(ctx); err != nil {
		err = fmt.Errorf("marking all notifications read: %w", err)
		p.revert(flipped, version, err)
		return err
	}
	return nil
}

// WaitForUpdate returns a tea.Cmd that waits for the next UpdateMsg. Call
// it again after handling each message to keep listening.
func (p *Poller) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-p.updates
		if !ok {
			return nil
		}
		return msg
	}
}

// loop runs the polling loop for one Start.
func (p *Poller) loop(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.pollOnce(ctx, epoch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.triggerCh:
		}

		if ctx.Err() != nil {
			return
		}
		if !p.sessionActive() {
			p.logger.Debug("session inactive; notification polling stopped")
			p.stopFrom(epoch)
			return
		}
		p.pollOnce(ctx, epoch)
	}
}

func (p *Poller) pollOnce(ctx context.Context, epoch uint64) {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if err := p.fetch(fctx, epoch); err != nil && !errors.Is(err, errStopped) {
		p.logger.Warn("polling notifications: %v", err)
		if !p.sessionActive() {
			p.stopFrom(epoch)
		}
	}
}

// fetch lists notifications and applies them if epoch is still current.
func (p *Poller) fetch(ctx context.Context, epoch uint64) error {
	p.mu.Lock()
	if epoch == p.epoch {
		p.status.State = PollRunning
	}
	p.mu.Unlock()

	items, err := p.api.ListNotifications(ctx)
	fetchedAt := time.Now()

	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return errStopped
	}
	if err != nil {
		p.status.State = PollError
		p.status.Error = err
		p.mu.Unlock()
		p.sendUpdate(UpdateMsg{
			Unread:         p.cache.UnreadCount(),
			UnreadMessages: p.cache.UnreadMessageCount(),
			Err:            err,
		})
		return err
	}
	p.cache.Replace(items)
	p.status = Status{State: PollIdle, LastSync: fetchedAt}
	p.mu.Unlock()

	p.saveSnapshot(ctx, items, fetchedAt)
	p.sendUpdate(p.counts())
	return nil
}

func (p *Poller) saveSnapshot(ctx context.Context, items []model.NotificationItem, fetchedAt time.Time) {
	if p.snapshots == nil {
		return
	}
	if err := p.snapshots.SaveNotificationSnapshot(ctx, items, fetchedAt); err != nil {
		p.logger.Warn("saving notification snapshot: %v", err)
	}
}

// stopFrom stops the poller from inside its own loop, where Stop would
// wait on itself.
func (p *Poller) stopFrom(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch || !p.running {
		return
	}
	p.running = false
	p.epoch++
	p.cancel()
}

func (p *Poller) revert(ids []string, version uint64, cause error) {
	n := p.cache.Revert(ids, version)
	p.logger.Warn("%v (reverted %d)", cause, n)

	msg := p.counts()
	msg.Warning = cause
	p.sendUpdate(msg)
}

func (p *Poller) sessionActive() bool {
	return p.active == nil || p.active()
}

func (p *Poller) counts() UpdateMsg {
	return UpdateMsg{
		Unread:         p.cache.UnreadCount(),
		UnreadMessages: p.cache.UnreadMessageCount(),
	}
}

// sendUpdate sends an UpdateMsg without blocking.
func (p *Poller) sendUpdate(msg UpdateMsg) {
	select {
	case p.updates <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
