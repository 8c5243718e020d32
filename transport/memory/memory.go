// Package memory provides an in-process Transport that calls subscribed
// handlers directly on publish, used by unit tests and the bundled
// example CLI in place of a real NATS server.
package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/ids"
	"github.com/GeorgeSapkin/pubsub-store/transport"
)

// Transport is a minimal in-memory pub/sub bus. Subscriptions are
// matched against subjects using NATS-style "." token wildcards
// ("*" matches exactly one token, ">" matches one or more trailing
// tokens), so existing subject tuples behave the same as against a real
// NATS Core connection.
type Transport struct {
	mu   sync.RWMutex
	subs map[string]map[string]transport.Handler
}

// New returns an empty in-memory Transport.
func New() *Transport {
	return &Transport{subs: make(map[string]map[string]transport.Handler)}
}

// Subscribe registers handler for subject, returning a SubscriptionID
// that pairs the subject with a ULID.
func (t *Transport) Subscribe(subject string, handler transport.Handler) (transport.SubscriptionID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.subs[subject]
	if !ok {
		bucket = make(map[string]transport.Handler)
		t.subs[subject] = bucket
	}
	id := ids.CreateULID()
	bucket[id] = handler
	return subscriptionID{subject: subject, id: id}, nil
}

type subscriptionID struct {
	subject string
	id      string
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (t *Transport) Unsubscribe(id transport.SubscriptionID) error {
	sid, ok := id.(subscriptionID)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.subs[sid.subject]
	if !ok {
		return nil
	}
	delete(bucket, sid.id)
	if len(bucket) == 0 {
		delete(t.subs, sid.subject)
	}
	return nil
}

// Publish delivers msg to every handler subscribed to a subject
// matching subject, without waiting for a reply.
func (t *Transport) Publish(subject string, msg []byte) error {
	t.deliver(subject, msg, "")
	return nil
}

// Request delivers msg to subject and waits for a single reply on a
// synthetic inbox subject, bound by ctx.
func (t *Transport) Request(ctx context.Context, subject string, msg []byte) ([]byte, error) {
	inbox := "_INBOX." + ulid.Make().String()

	replies := make(chan []byte, 1)
	id, err := t.Subscribe(inbox, func(reply []byte, replyTo string) {
		replies <- reply
	})
	if err != nil {
		return nil, err
	}
	defer t.Unsubscribe(id)

	t.deliver(subject, msg, inbox)

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Transport) deliver(subject string, msg []byte, replyTo string) {
	t.mu.RLock()
	var matched []transport.Handler
	for sub, bucket := range t.subs {
		if !subjectMatches(sub, subject) {
			continue
		}
		for _, h := range bucket {
			matched = append(matched, h)
		}
	}
	t.mu.RUnlock()

	for _, h := range matched {
		h(msg, replyTo)
	}
}

// subjectMatches reports whether publishedSubject matches subscription,
// a NATS-style subject pattern using "." token separators, "*" for a
// single token, and ">" for one-or-more trailing tokens.
func subjectMatches(subscription, publishedSubject string) bool {
	subTokens := splitSubject(subscription)
	pubTokens := splitSubject(publishedSubject)

	for i, st := range subTokens {
		if st == ">" {
			return i < len(pubTokens)
		}
		if i >= len(pubTokens) {
			return false
		}
		if st != "*" && st != pubTokens[i] {
			return false
		}
	}
	return len(subTokens) == len(pubTokens)
}

func splitSubject(subject string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(subject); i++ {
		if subject[i] == '.' {
			tokens = append(tokens, subject[start:i])
			start = i + 1
		}
	}
	tokens = append(tokens, subject[start:])
	return tokens
}
