// Package nats implements the pubsubstore transport.Transport contract
// directly on NATS Core, using nats.go's native request/reply support
// rather than any pub/sub router abstraction.
package nats

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/GeorgeSapkin/pubsub-store/transport"
)

// ConnectFactory allows overriding connection creation for testing.
var ConnectFactory = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

// Transport is a transport.Transport backed by a single *nats.Conn.
type Transport struct {
	conn *nats.Conn
}

// Connect dials url and returns a ready Transport.
func Connect(url string, opts ...nats.Option) (*Transport, error) {
	conn, err := ConnectFactory(url, opts...)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an already-established connection.
func New(conn *nats.Conn) *Transport {
	return &Transport{conn: conn}
}

// Close closes the underlying connection without draining it.
func (t *Transport) Close() {
	t.conn.Close()
}

// Subscribe registers handler on subject. The returned SubscriptionID is
// the underlying *nats.Subscription.
func (t *Transport) Subscribe(subject string, handler transport.Handler) (transport.SubscriptionID, error) {
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data, msg.Reply)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (t *Transport) Unsubscribe(id transport.SubscriptionID) error {
	sub, ok := id.(*nats.Subscription)
	if !ok || sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

// Publish sends msg to subject without waiting for a reply.
func (t *Transport) Publish(subject string, msg []byte) error {
	return t.conn.Publish(subject, msg)
}

// Request sends msg to subject and blocks for a single reply bound by
// ctx, using NATS Core's inbox-based request/reply.
func (t *Transport) Request(ctx context.Context, subject string, msg []byte) ([]byte, error) {
	reply, err := t.conn.RequestWithContext(ctx, subject, msg)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}
