package nats

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/GeorgeSapkin/pubsub-store/transport"
)

var _ transport.Transport = (*Transport)(nil)

func TestConnectPropagatesFactoryError(t *testing.T) {
	original := ConnectFactory
	defer func() { ConnectFactory = original }()

	boom := errors.New("dial failed")
	ConnectFactory = func(url string, opts ...nats.Option) (*nats.Conn, error) {
		return nil, boom
	}

	_, err := Connect("nats://localhost:4222")
	if err != boom {
		t.Fatalf("Connect() error = %v, want %v", err, boom)
	}
}

func TestUnsubscribeNilIsNoop(t *testing.T) {
	tr := New(nil)
	if err := tr.Unsubscribe(nil); err != nil {
		t.Fatalf("Unsubscribe(nil) = %v, want nil", err)
	}
}

func TestUnsubscribeWrongTypeIsNoop(t *testing.T) {
	tr := New(nil)
	if err := tr.Unsubscribe("not-a-subscription"); err != nil {
		t.Fatalf("Unsubscribe(wrong type) = %v, want nil", err)
	}
}
