// Package fanout replicates relay writes between relay instances over
// Redis pub/sub so watchers connected to any instance see every write.
package fanout

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/redis/go-redis/v9"
)

// envelope is the pub/sub payload. Origin identifies the publishing relay
// so an instance can drop its own writes.
type envelope struct {
	Origin string          `json:"origin"`
	Path   []string        `json:"path"`
	Value  json.RawMessage `json:"value"`
}

func encode(origin string, n store.Node) ([]byte, error) {
	b, err := json.Marshal(envelope{Origin: origin, Path: n.Path, Value: n.Value})
	if err != nil {
		return nil, errors.Wrap(err, "encode envelope")
	}
	return b, nil
}

func decode(payload []byte) (envelope, error) {
	var e envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return envelope{}, errors.Wrap(err, "decode envelope")
	}
	if err := store.Path(e.Path).Validate(); err != nil {
		return envelope{}, err
	}
	return e, nil
}

type Bridge struct {
	rdb     redis.UniversalClient
	channel string
	origin  string
	log     logging.Logger
}

func NewBridge(rdb redis.UniversalClient, channel string, log logging.Logger) *Bridge {
	return &Bridge{
		rdb:     rdb,
		channel: channel,
		origin:  common.NewID(),
		log:     log.With("module", "fanout"),
	}
}

// Origin is this instance's id on the channel.
func (b *Bridge) Origin() string {
	return b.origin
}

// Publish announces a local write to the other instances.
func (b *Bridge) Publish(ctx context.Context, n store.Node) error {
	payload, err := encode(b.origin, n)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

// Run subscribes to the channel and calls apply for every write made by
// another instance until ctx is done.
func (b *Bridge) Run(ctx context.Context, apply func(store.Node)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis subscribe")
	}
	b.log.Info(ctx, "Fan-out subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, []byte(msg.Payload), apply)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, payload []byte, apply func(store.Node)) {
	e, err := decode(payload)
	if err != nil {
		b.log.Warn(ctx, "Dropping malformed fan-out message", "error", err)
		return
	}
	if e.Origin == b.origin {
		return
	}
	apply(store.Node{Path: store.Path(e.Path), Value: e.Value})
}
