package progress

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	channelPrefix  = "document:"
	channelSuffix  = ":progress"
	channelPattern = channelPrefix + "*" + channelSuffix
)

func Channel(documentID string) string {
	return channelPrefix + documentID + channelSuffix
}

func documentFromChannel(ch string) (string, bool) {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(ch, channelPrefix), channelSuffix)
	return id, id != ""
}

// RedisRelay publishes events on Redis pub/sub so that every API replica can
// fan them out to its local subscribers.
type RedisRelay struct {
	rdb   *redis.Client
	local *Broadcaster
	log   *logrus.Logger
}

func NewRedisRelay(rdb *redis.Client, local *Broadcaster, log *logrus.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, local: local, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, documentID string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, Channel(documentID), b).Err()
}

// Start subscribes before returning, so events published afterwards are not
// missed, then forwards them to the local broadcaster until ctx ends.
func (r *RedisRelay) Start(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, channelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				r.forward(ctx, m)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) forward(ctx context.Context, m *redis.Message) {
	docID, ok := documentFromChannel(m.Channel)
	if !ok {
		return
	}
	var ev Event
	if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
		r.log.WithError(err).WithField("channel", m.Channel).Warn("bad progress payload")
		return
	}
	_ = r.local.Publish(ctx, docID, ev)
}
