// Package notify turns record expiries into at-most-once user
// notifications and drives their side effects.
package notify

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/lifecycle"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/observability"
	"gta-grind-tracker/pkg/uid"
)

// DefaultGrace is added to an expiry before its timer fires so the
// notification never precedes the record's end time.
const DefaultGrace = 250 * time.Millisecond

// DefaultListenerTimeout bounds one listener call.
const DefaultListenerTimeout = 2 * time.Second

const listenerQueueSize = 256

var errListenerQueueFull = errors.New("listener queue full, notification dropped")

// Notification event types published on the hub.
const (
	EventNotificationFired     = "notification.fired"
	EventNotificationDismissed = "notification.dismissed"
	EventNotificationsCleared  = "notification.cleared"
)

type timerEntry struct {
	handle clock.Handle
	gen    uint64
	end    time.Time
}

type listenerJob struct {
	n   model.PendingNotification
	msg string
}

type artifacts struct {
	platform string
	toast    string
}

// Scheduler owns the notified-key set, the in-flight timers and the list
// of pending notifications. Reconcile passes and timer callbacks are
// serialized on one mutex; side effects run after it is released.
type Scheduler struct {
	clock     clock.Clock
	grace     time.Duration
	logger    *log.Logger
	sounder   Sounder
	platform  Platform
	toaster   Toaster
	listeners []Listener
	hub       *eventbus.Hub

	listenerTimeout time.Duration
	queueMu         sync.Mutex
	queueClosed     bool
	queue           chan listenerJob
	workerDone      chan struct{}

	mu        sync.Mutex
	permitted bool
	closed    bool
	gen       uint64
	notified  map[string]time.Time // key -> end time of the record it fired for
	acked     map[string]time.Time // passive key -> readiness instant already fired
	timers    map[string]timerEntry
	active    map[string]time.Time // key -> current end time
	names     map[string]string
	pending   []model.PendingNotification
	handles   map[string]artifacts
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSounder sets the alert sound.
func WithSounder(snd Sounder) Option {
	return func(s *Scheduler) {
		if snd != nil {
			s.sounder = snd
		}
	}
}

// WithPlatform sets the system notification surface.
func WithPlatform(p Platform) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.platform = p
		}
	}
}

// WithToaster sets the in-app toast surface.
func WithToaster(t Toaster) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.toaster = t
		}
	}
}

// WithListeners adds observers of fired notifications.
func WithListeners(ls ...Listener) Option {
	return func(s *Scheduler) {
		for _, l := range ls {
			if l != nil {
				s.listeners = append(s.listeners, l)
			}
		}
	}
}

// WithListenerTimeout overrides DefaultListenerTimeout.
func WithListenerTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.listenerTimeout = d
		}
	}
}

// WithHub publishes notification lifecycle events on hub.
func WithHub(hub *eventbus.Hub) Option {
	return func(s *Scheduler) { s.hub = hub }
}

// NewScheduler creates a scheduler on clk.
func NewScheduler(clk clock.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clk,
		grace:    DefaultGrace,
		logger:   log.Default(),
		sounder:  NopSounder{},
		platform: NopPlatform{},
		toaster:  NopToaster{},
		notified: make(map[string]time.Time),
		acked:    make(map[string]time.Time),
		timers:   make(map[string]timerEntry),
		active:   make(map[string]time.Time),
		names:    make(map[string]string),
		handles:  make(map[string]artifacts),

		listenerTimeout: DefaultListenerTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.listeners) > 0 {
		s.queue = make(chan listenerJob, listenerQueueSize)
		s.workerDone = make(chan struct{})
		go s.runListeners()
	}
	return s
}

// RequestPermission asks the platform for permission to show system
// notifications. Without it the scheduler only shows toasts.
func (s *Scheduler) RequestPermission(ctx context.Context) bool {
	err := s.platform.RequestPermission(ctx)
	if err != nil {
		s.logger.Printf("[Scheduler] Platform notifications unavailable: %v", err)
	}

	s.mu.Lock()
	s.permitted = err == nil
	s.mu.Unlock()
	return err == nil
}

// Reconcile brings the scheduler in line with snap: it schedules timers
// for future expiries, fires past expiries and passive readiness once,
// and drops timers and notified keys whose records disappeared.
func (s *Scheduler) Reconcile(ctx context.Context, snap *model.Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()

	s.names = make(map[string]string, len(snap.Activities))
	for _, a := range snap.Activities {
		s.names[a.ID] = a.DisplayName()
	}

	active := make(map[string]time.Time, len(snap.Cooldowns)+len(snap.Resupplies))
	for _, c := range snap.Cooldowns {
		active[model.DedupKey(model.NotificationCooldown, c.ActivityID)] = c.EndTime
	}
	for _, r := range snap.Resupplies {
		active[model.DedupKey(model.NotificationResupply, r.ActivityID)] = r.EndTime
	}
	s.active = active

	var fired []model.PendingNotification
	for _, c := range snap.Cooldowns {
		if n, ok := s.evaluateExpiry(model.NotificationCooldown, c.ActivityID, c.EndTime, now); ok {
			fired = append(fired, n)
		}
	}
	for _, r := range snap.Resupplies {
		if n, ok := s.evaluateExpiry(model.NotificationResupply, r.ActivityID, r.EndTime, now); ok {
			fired = append(fired, n)
		}
	}
	for _, a := range snap.Activities {
		if n, ok := s.evaluatePassive(a, snap, now); ok {
			fired = append(fired, n)
		}
	}

	for key, entry := range s.timers {
		if _, ok := active[key]; !ok {
			s.clock.Cancel(entry.handle)
			delete(s.timers, key)
		}
	}
	for key := range s.notified {
		if _, ok := active[key]; ok || isPassiveKey(key) {
			continue
		}
		delete(s.notified, key)
	}

	observability.SetTimersInFlight(len(s.timers))
	s.mu.Unlock()

	s.dispatch(ctx, fired)
}

// evaluateExpiry handles one cooldown or resupply record. A record whose
// end time changed since the key fired or was armed starts a new cycle.
// Caller holds mu.
func (s *Scheduler) evaluateExpiry(t model.NotificationType, activityID string, end, now time.Time) (model.PendingNotification, bool) {
	key := model.DedupKey(t, activityID)
	if firedFor, done := s.notified[key]; done {
		if firedFor.Equal(end) {
			return model.PendingNotification{}, false
		}
		delete(s.notified, key)
	}

	if entry, scheduled := s.timers[key]; scheduled && !entry.end.Equal(end) {
		s.clock.Cancel(entry.handle)
		delete(s.timers, key)
	}

	if end.After(now) {
		if _, scheduled := s.timers[key]; !scheduled {
			s.gen++
			gen := s.gen
			h := s.clock.Schedule(end.Sub(now)+s.grace, func() { s.onTimer(key, t, activityID, gen) })
			s.timers[key] = timerEntry{handle: h, gen: gen, end: end}
		}
		return model.PendingNotification{}, false
	}

	if entry, scheduled := s.timers[key]; scheduled {
		s.clock.Cancel(entry.handle)
		delete(s.timers, key)
	}
	return s.record(key, t, activityID, now, end, nil), true
}

// evaluatePassive fires readiness of a passive business without a
// resupply cycle. There is no forward timer: readiness is only detected
// when a reconcile pass observes it. Caller holds mu.
func (s *Scheduler) evaluatePassive(a model.Activity, snap *model.Snapshot, now time.Time) (model.PendingNotification, bool) {
	if !a.Passive || a.ResupplyMin > 0 || a.AvgTimeMin <= 0 {
		return model.PendingNotification{}, false
	}
	last := snap.LastSellSession(a.ID)
	if last == nil {
		return model.PendingNotification{}, false
	}

	t := passiveReadyType(a)
	key := model.DedupKey(t, a.ID)
	readyAt := last.EndTime.Add(model.MinutesToDuration(a.AvgTimeMin))
	if readyAt.After(now) {
		return model.PendingNotification{}, false
	}
	// one fire per readiness instant; a newer sell opens a new cycle
	if ack, ok := s.acked[key]; ok && ack.Equal(readyAt) {
		return model.PendingNotification{}, false
	}

	value := a.AvgPayout
	n := s.record(key, t, a.ID, now, readyAt, &value)
	s.acked[key] = readyAt
	return n, true
}

func (s *Scheduler) onTimer(key string, t model.NotificationType, activityID string, gen uint64) {
	s.mu.Lock()
	entry, ok := s.timers[key]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)

	now := s.clock.Now()
	_, done := s.notified[key]
	end, stillActive := s.active[key]
	// the record must still be the one this timer was armed for, and over
	if s.closed || done || !stillActive || !end.Equal(entry.end) || end.After(now) {
		observability.SetTimersInFlight(len(s.timers))
		s.mu.Unlock()
		observability.RecordStaleFire()
		return
	}

	n := s.record(key, t, activityID, now, end, nil)
	observability.SetTimersInFlight(len(s.timers))
	s.mu.Unlock()

	s.dispatch(context.Background(), []model.PendingNotification{n})
}

// record marks key notified for the record ending at end and appends the
// notification. Caller holds mu.
func (s *Scheduler) record(key string, t model.NotificationType, activityID string, at, end time.Time, value *int64) model.PendingNotification {
	s.notified[key] = end

	name := s.names[activityID]
	if name == "" {
		name = activityID
	}
	n := model.PendingNotification{
		ID:           key,
		ActivityID:   activityID,
		ActivityName: name,
		Type:         t,
		Timestamp:    at,
		Value:        value,
	}

	// a key fires at most once per cycle, but an undismissed notification
	// from a previous cycle is replaced rather than duplicated
	for i := range s.pending {
		if s.pending[i].ID == key {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.pending = append(s.pending, n)
	return n
}

// dispatch runs the side effects of newly fired notifications. Failures
// are logged and never affect the recorded notification.
func (s *Scheduler) dispatch(ctx context.Context, fired []model.PendingNotification) {
	for _, n := range fired {
		msg := Message(n)
		observability.RecordNotificationFired(string(n.Type))
		s.logger.Printf("[Scheduler] Notification %s: %s", n.ID, msg)

		s.hub.Publish(eventbus.Event{
			Type:      EventNotificationFired,
			Timestamp: n.Timestamp.UnixMilli(),
			Data:      notificationData(n, msg),
		})

		if err := s.sounder.Play(ctx); err != nil {
			s.sideEffectFailed("sound", n.ID, err)
		}

		var art artifacts
		s.mu.Lock()
		permitted := s.permitted
		s.mu.Unlock()
		if permitted {
			handle, err := s.platform.Show(ctx, Title, msg, Tag(n))
			if err != nil {
				s.sideEffectFailed("platform", n.ID, err)
			}
			art.platform = handle
		}

		handle, err := s.toaster.Show(ctx, n, msg)
		if err != nil {
			s.sideEffectFailed("toast", n.ID, err)
		}
		art.toast = handle

		s.attach(ctx, n.ID, art)

		s.enqueueListeners(n, msg)
	}
}

// enqueueListeners hands n to the listener worker without blocking. A
// full queue drops the delivery.
func (s *Scheduler) enqueueListeners(n model.PendingNotification, msg string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.queue == nil || s.queueClosed {
		return
	}
	select {
	case s.queue <- listenerJob{n: n, msg: msg}:
	default:
		s.sideEffectFailed("listener", n.ID, errListenerQueueFull)
	}
}

// runListeners delivers fired notifications to the listeners, one call at
// a time, each bounded by listenerTimeout.
func (s *Scheduler) runListeners() {
	defer close(s.workerDone)

	for job := range s.queue {
		for _, l := range s.listeners {
			ctx, cancel := context.WithTimeout(context.Background(), s.listenerTimeout)
			err := l.NotificationFired(ctx, job.n, job.msg)
			cancel()
			if err != nil {
				s.sideEffectFailed("listener", job.n.ID, err)
			}
		}
	}
}

// attach stores side-effect handles, or closes them at once when the
// notification was dismissed while they were being created.
func (s *Scheduler) attach(ctx context.Context, id string, art artifacts) {
	if art.platform == "" && art.toast == "" {
		return
	}

	s.mu.Lock()
	stillPending := false
	for _, p := range s.pending {
		if p.ID == id {
			stillPending = true
			break
		}
	}
	var previous artifacts
	if stillPending {
		previous = s.handles[id]
		s.handles[id] = art
	}
	s.mu.Unlock()

	if !stillPending {
		s.closeArtifacts(ctx, id, art)
		return
	}
	s.closeArtifacts(ctx, id, previous)
}

// Dismiss removes the notification with the given id and closes its
// platform notification and toast. Unknown ids are ignored.
func (s *Scheduler) Dismiss(ctx context.Context, id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.pending {
		if s.pending[i].ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			found = true
			break
		}
	}
	art := s.handles[id]
	delete(s.handles, id)
	if isPassiveKey(id) {
		delete(s.notified, id)
	}
	s.mu.Unlock()

	s.closeArtifacts(ctx, id, art)
	if found {
		s.hub.Publish(eventbus.Event{
			Type:      EventNotificationDismissed,
			Timestamp: s.clock.Now().UnixMilli(),
			Data:      map[string]any{"id": id},
		})
	}
	return found
}

// ClearAll removes every pending notification and closes all artifacts.
func (s *Scheduler) ClearAll(ctx context.Context) int {
	s.mu.Lock()
	cleared := len(s.pending)
	for _, p := range s.pending {
		if isPassiveKey(p.ID) {
			delete(s.notified, p.ID)
		}
	}
	s.pending = nil
	handles := s.handles
	s.handles = make(map[string]artifacts)
	s.mu.Unlock()

	for id, art := range handles {
		s.closeArtifacts(ctx, id, art)
	}
	if cleared > 0 {
		s.hub.Publish(eventbus.Event{
			Type:      EventNotificationsCleared,
			Timestamp: s.clock.Now().UnixMilli(),
			Data:      map[string]any{"count": cleared},
		})
	}
	return cleared
}

// Pending returns the pending notifications, oldest first.
func (s *Scheduler) Pending() []model.PendingNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PendingNotification, len(s.pending))
	copy(out, s.pending)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// InFlight returns the number of scheduled expiry timers.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// IsNotified reports whether key has fired in its current cycle.
func (s *Scheduler) IsNotified(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notified[key]
	return ok
}

// Close cancels every timer and waits for queued listener deliveries.
// Pending notifications stay readable.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for key, entry := range s.timers {
			s.clock.Cancel(entry.handle)
			delete(s.timers, key)
		}
		observability.SetTimersInFlight(0)
	}
	s.mu.Unlock()

	s.queueMu.Lock()
	if s.queue != nil && !s.queueClosed {
		s.queueClosed = true
		close(s.queue)
	}
	s.queueMu.Unlock()

	if s.workerDone != nil {
		<-s.workerDone
	}
}

func (s *Scheduler) closeArtifacts(ctx context.Context, id string, art artifacts) {
	if art.platform != "" {
		if err := s.platform.Close(ctx, art.platform); err != nil {
			s.sideEffectFailed(surfaceOf(art.platform, "platform"), id, err)
		}
	}
	if art.toast != "" {
		if err := s.toaster.Dismiss(ctx, art.toast); err != nil {
			s.sideEffectFailed(surfaceOf(art.toast, "toast"), id, err)
		}
	}
}

func (s *Scheduler) sideEffectFailed(sink, id string, err error) {
	observability.RecordSideEffectFailure(sink)
	s.logger.Printf("[Scheduler] %s side effect failed for %s: %v", sink, id, err)
}

// surfaceOf labels a failed close by the surface encoded in its handle.
func surfaceOf(handle, fallback string) string {
	if surface := uid.Surface(handle); surface != "" {
		return surface
	}
	return fallback
}

// passiveReadyType picks the notification type of a passive activity
// without a resupply cycle, with the same classifier the board uses.
func passiveReadyType(a model.Activity) model.NotificationType {
	if lifecycle.IsSafe(a) {
		return model.NotificationSafe
	}
	return model.NotificationPassiveReady
}

func isPassiveKey(key string) bool {
	return strings.HasPrefix(key, string(model.NotificationSafe)+"-") ||
		strings.HasPrefix(key, string(model.NotificationPassiveReady)+"-")
}

func notificationData(n model.PendingNotification, msg string) map[string]any {
	data := map[string]any{
		"id":            n.ID,
		"activity_id":   n.ActivityID,
		"activity_name": n.ActivityName,
		"type":          string(n.Type),
		"message":       msg,
	}
	if n.Value != nil {
		data["value"] = *n.Value
	}
	return data
}
