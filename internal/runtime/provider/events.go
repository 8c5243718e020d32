package provider

import (
	"sync"

	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/jsoncodec"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/subject"
	"github.com/GeorgeSapkin/pubsub-store/transport"
)

// Listener receives a decoded bus event. err is set on a JSON parse
// failure, in which case query is nil; otherwise query is the decoded
// message (including its "object" field for create/update events).
type Listener func(err error, query any)

// ListenerHandle identifies a registration made through On/Once/
// PrependListener/PrependOnceListener, for later removal via
// RemoveListener.
type ListenerHandle any

type listenerEntry struct {
	event  string
	fn     Listener
	once   bool
	subIDs []transport.SubscriptionID
}

// eventBridge maps bus create/update messages to local listener
// emissions. Registering for "create" or "update" subscribes both
// subjects in that group; registering for any other event name is a
// local-only listener with no bus interaction.
type eventBridge struct {
	provider *Provider

	mu        sync.Mutex
	listeners map[string][]*listenerEntry
}

// On registers fn for event, subscribing to the bus if event is
// "create" or "update".
func (p *Provider) On(event string, fn Listener) ListenerHandle {
	return p.events.register(event, fn, false)
}

// Once behaves like On but removes the registration after its first
// invocation.
func (p *Provider) Once(event string, fn Listener) ListenerHandle {
	return p.events.register(event, fn, true)
}

// PrependListener is aliased to On: there is no bus-level re-ordering
// effect to prepend.
func (p *Provider) PrependListener(event string, fn Listener) ListenerHandle {
	return p.On(event, fn)
}

// PrependOnceListener is aliased to Once.
func (p *Provider) PrependOnceListener(event string, fn Listener) ListenerHandle {
	return p.Once(event, fn)
}

// RemoveListener unsubscribes exactly the bus subscriptions associated
// with handle, if any, and removes the local registration. Removing a
// handle that was never added, or was already removed, is a no-op.
func (p *Provider) RemoveListener(handle ListenerHandle) {
	entry, ok := handle.(*listenerEntry)
	if !ok || entry == nil {
		return
	}
	p.events.remove(entry)
}

// RemoveAllListeners removes every registration for the given event
// names, or every registration for every event if none are given.
func (p *Provider) RemoveAllListeners(events ...string) {
	p.events.removeAll(events)
}

func (b *eventBridge) register(event string, fn Listener, once bool) ListenerHandle {
	entry := &listenerEntry{event: event, fn: fn, once: once}

	if group, ok := b.busGroup(event); ok {
		for _, subj := range []string{group.Base, group.Wildcard} {
			id, err := b.provider.transport.Subscribe(subj, b.busHandler(entry))
			if err == nil {
				entry.subIDs = append(entry.subIDs, id)
			}
		}
	}

	b.mu.Lock()
	b.listeners[event] = append(b.listeners[event], entry)
	b.mu.Unlock()
	return entry
}

func (b *eventBridge) busGroup(event string) (subject.Pair, bool) {
	switch event {
	case "create":
		return b.provider.subjects.Create, true
	case "update":
		return b.provider.subjects.Update, true
	default:
		return subject.Pair{}, false
	}
}

func (b *eventBridge) busHandler(entry *listenerEntry) transport.Handler {
	return func(msg []byte, replyTo string) {
		var decoded any
		if err := jsoncodec.Unmarshal(msg, &decoded); err != nil {
			b.invoke(entry, err, nil)
			return
		}
		b.invoke(entry, nil, decoded)
	}
}

func (b *eventBridge) invoke(entry *listenerEntry, err error, query any) {
	entry.fn(err, query)
	if entry.once {
		b.remove(entry)
	}
}

func (b *eventBridge) remove(entry *listenerEntry) {
	b.mu.Lock()
	list := b.listeners[entry.event]
	for i, e := range list {
		if e == entry {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	b.listeners[entry.event] = list
	b.mu.Unlock()

	for _, id := range entry.subIDs {
		_ = b.provider.transport.Unsubscribe(id)
	}
}

func (b *eventBridge) removeAll(events []string) {
	b.mu.Lock()
	var toRemove []*listenerEntry
	if len(events) == 0 {
		for event, list := range b.listeners {
			toRemove = append(toRemove, list...)
			delete(b.listeners, event)
		}
	} else {
		for _, event := range events {
			toRemove = append(toRemove, b.listeners[event]...)
			delete(b.listeners, event)
		}
	}
	b.mu.Unlock()

	for _, entry := range toRemove {
		for _, id := range entry.subIDs {
			_ = b.provider.transport.Unsubscribe(id)
		}
	}
}
