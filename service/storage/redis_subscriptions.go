package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// subs key: sync:subs:<gateway>
// field clientId, value the JSON record; the whole hash expires so a dead
// gateway's snapshot goes away by itself.
func subsKey(gatewayID string) string { return "sync:subs:" + gatewayID }

// RedisSink keeps one hash per gateway.
type RedisSink struct {
	rdb       redis.Cmdable
	gatewayID string
	ttl       time.Duration
}

func NewRedisSink(rdb redis.Cmdable, gatewayID string, ttl time.Duration) *RedisSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSink{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

func (s *RedisSink) Save(ctx context.Context, subs []Subscription) error {
	key := subsKey(s.gatewayID)
	fields := make([]any, 0, len(subs)*2)
	for _, sub := range subs {
		b, err := json.Marshal(sub)
		if err != nil {
			return errors.Wrap(err, "marshal sub")
		}
		fields = append(fields, sub.ClientID, string(b))
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(fields) > 0 {
			p.HSet(ctx, key, fields...)
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return errors.Wrapf(err, "save subs %s", key)
}

// Load returns the snapshot of this gateway, keyed by client id.
func (s *RedisSink) Load(ctx context.Context) (map[string]Subscription, error) {
	raw, err := s.rdb.HGetAll(ctx, subsKey(s.gatewayID)).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]Subscription{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]Subscription, len(raw))
	for id, v := range raw {
		var sub Subscription
		if err := json.Unmarshal([]byte(v), &sub); err != nil {
			return nil, errors.Wrapf(err, "decode sub %s", id)
		}
		out[id] = sub
	}
	return out, nil
}
