package event

import (
	"log"
	"sync"
)

// Topics on the process-wide bus. Handlers and services publish and
// subscribe by these names only.
const (
	TopicAuthStateChanged   = "authStateChanged"
	TopicThemeChanged       = "themeChanged"
	TopicLanguageChanged    = "languageChanged"
	TopicSettingsChanged    = "settingsChanged"
	TopicUserSettingsLoaded = "userSettingsLoaded"
	TopicSettingsSync       = "settingsSync"
	TopicNotification       = "notification"
)

type Handler func(payload any)

// Bus is the process-wide event surface. Publishing is synchronous:
// subscribers run in registration order on the publisher's goroutine,
// and a panicking subscriber never takes the publisher down.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for a topic and returns an idempotent
// unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, sub := range list {
			if sub.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish fans the payload out to every subscriber of the topic.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	list := make([]subscription, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.Unlock()

	for _, sub := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Warning: subscriber for %q panicked: %v", topic, r)
				}
			}()
			sub.handler(payload)
		}()
	}
}
