package waku

import (
	"sync"
	"time"
)

type PrivateMessage struct {
	ID        string
	SenderID  string
	Recipient string
	Payload   []byte
}

type storedPrivateMessage struct {
	msg        PrivateMessage
	receivedAt time.Time
}

// messageBus is the in-process mock transport: publishes deliver to a live
// subscriber (or queue in a mailbox until one appears), and every publish
// is also retained per recipient so FetchPrivateSince behaves like a waku
// store query against it.
type messageBus struct {
	mu          sync.Mutex
	subscribers map[string]func(PrivateMessage)
	mailbox     map[string][]PrivateMessage
	retained    map[string][]storedPrivateMessage
}

var globalBus = &messageBus{
	subscribers: make(map[string]func(PrivateMessage)),
	mailbox:     make(map[string][]PrivateMessage),
	retained:    make(map[string][]storedPrivateMessage),
}

func (b *messageBus) publish(msg PrivateMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retained[msg.Recipient] = append(b.retained[msg.Recipient], storedPrivateMessage{msg: msg, receivedAt: time.Now().UTC()})
	if handler, ok := b.subscribers[msg.Recipient]; ok {
		go handler(msg)
		return
	}
	b.mailbox[msg.Recipient] = append(b.mailbox[msg.Recipient], msg)
}

func (b *messageBus) subscribe(recipient string, handler func(PrivateMessage)) {
	b.mu.Lock()
	b.subscribers[recipient] = handler
	pending := append([]PrivateMessage(nil), b.mailbox[recipient]...)
	delete(b.mailbox, recipient)
	b.mu.Unlock()

	for _, msg := range pending {
		handler(msg)
	}
}

func (b *messageBus) unsubscribe(recipient string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, recipient)
}

// history returns the retained messages for a recipient received after
// since, oldest first, up to limit.
func (b *messageBus) history(recipient string, since time.Time, limit int) []PrivateMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PrivateMessage, 0, limit)
	for _, stored := range b.retained[recipient] {
		if !since.IsZero() && !stored.receivedAt.After(since) {
			continue
		}
		out = append(out, stored.msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
