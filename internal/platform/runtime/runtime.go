package runtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"sync"
	"time"

	"aim-chat/go-backend/pkg/models"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// NotificationEvent is one entry on the daemon's local event bus.
type NotificationEvent struct {
	Seq       int64
	Method    string
	Payload   any
	Timestamp time.Time
}

// NotificationHub is the broadcast channel behind SubscribeNotifications:
// many producers, many subscribers, bounded history for replay, and lossy
// toward subscribers that stop draining (their channel is closed and they
// must resubscribe from their last seen cursor).
type NotificationHub struct {
	mu      sync.Mutex
	nextSeq int64
	limit   int
	history []NotificationEvent
	subs    map[int]chan NotificationEvent
	nextSub int
}

func NewNotificationHub(limit int) *NotificationHub {
	if limit < 1 {
		limit = 1
	}
	return &NotificationHub{
		limit: limit,
		subs:  make(map[int]chan NotificationEvent),
	}
}

func (h *NotificationHub) Publish(method string, payload any) NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	event := NotificationEvent{
		Seq:       h.nextSeq,
		Method:    method,
		Payload:   payload,
		Timestamp: nowUTC(),
	}
	h.history = append(h.history, event)
	if len(h.history) > h.limit {
		h.history = append([]NotificationEvent(nil), h.history[len(h.history)-h.limit:]...)
	}

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}

	return event
}

func (h *NotificationHub) Subscribe(fromSeq int64) ([]NotificationEvent, <-chan NotificationEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	replay := make([]NotificationEvent, 0)
	for _, event := range h.history {
		if event.Seq > fromSeq {
			replay = append(replay, event)
		}
	}

	id := h.nextSub
	h.nextSub++
	ch := make(chan NotificationEvent, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return replay, ch, cancel
}

func (h *NotificationHub) BacklogSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// ServiceRuntime tracks the networking lifecycle: a single active network
// context plus the retry-loop goroutine tied to it.
type ServiceRuntime struct {
	Mu              sync.RWMutex
	Networking      bool
	NetworkCtx      context.Context
	NetworkCancel   context.CancelFunc
	RetryCancel     context.CancelFunc
	RetryWG         sync.WaitGroup
	NetworkStateSet bool
	LastNetwork     models.NetworkStatus
}

func NewServiceRuntime() *ServiceRuntime {
	return &ServiceRuntime{}
}

func (r *ServiceRuntime) IsNetworking() bool {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	return r.Networking
}

func (r *ServiceRuntime) TryActivate(networkCtx context.Context, networkCancel, retryCancel context.CancelFunc) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Networking {
		return false
	}
	r.NetworkCtx = networkCtx
	r.NetworkCancel = networkCancel
	r.RetryCancel = retryCancel
	r.RetryWG.Add(1)
	r.Networking = true
	return true
}

func (r *ServiceRuntime) RetryLoopDone() {
	r.RetryWG.Done()
}

func (r *ServiceRuntime) Deactivate() (retryCancel, networkCancel context.CancelFunc, wasRunning bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.Networking {
		return nil, nil, false
	}
	retryCancel = r.RetryCancel
	networkCancel = r.NetworkCancel
	r.RetryCancel = nil
	r.NetworkCancel = nil
	r.NetworkCtx = nil
	r.Networking = false
	return retryCancel, networkCancel, true
}

func (r *ServiceRuntime) WaitRetryLoop() {
	r.RetryWG.Wait()
}

func (r *ServiceRuntime) CurrentNetworkContext() (context.Context, bool) {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	if !r.Networking || r.NetworkCtx == nil {
		return nil, false
	}
	return r.NetworkCtx, true
}

func (r *ServiceRuntime) UpdateLastNetworkStatus(current models.NetworkStatus, force bool) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	changed := !r.NetworkStateSet ||
		r.LastNetwork.Status != current.Status ||
		r.LastNetwork.PeerCount != current.PeerCount
	if force || changed {
		r.LastNetwork = current
		r.NetworkStateSet = true
	}
	return force || changed
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func GeneratePrefixedID(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
