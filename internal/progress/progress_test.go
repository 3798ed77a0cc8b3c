package progress

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoocv/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBroadcasterDeliversOnlyToDocumentSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(4, quietLogger())
	a1 := b.Subscribe("u1", "doc-a")
	a2 := b.Subscribe("u2", "doc-a")
	other := b.Subscribe("u1", "doc-b")
	defer b.Unsubscribe(a1)
	defer b.Unsubscribe(a2)
	defer b.Unsubscribe(other)

	require.NoError(t, b.Publish(context.Background(), "doc-a", Event{Type: EventProgress, Percentage: 30}))

	for _, s := range []*Subscription{a1, a2} {
		select {
		case ev := <-s.C:
			assert.Equal(t, 30, ev.Percentage)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
	assert.Equal(t, 2, b.Count("doc-a"))
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(1, quietLogger())
	s := b.Subscribe("u1", "doc")
	defer b.Unsubscribe(s)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "doc", Event{Type: EventProgress, Percentage: 10}))
	require.NoError(t, b.Publish(ctx, "doc", Event{Type: EventProgress, Percentage: 20}))

	ev := <-s.C
	assert.Equal(t, 10, ev.Percentage)
	select {
	case ev := <-s.C:
		t.Fatalf("second event should be dropped, got %+v", ev)
	default:
	}
}

func TestBroadcasterUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(1, quietLogger())
	s := b.Subscribe("u1", "doc")
	b.Unsubscribe(s)
	b.Unsubscribe(s)

	_, open := <-s.C
	assert.False(t, open)
	assert.Zero(t, b.Count("doc"))
	assert.NoError(t, b.Publish(context.Background(), "doc", Event{Type: EventProgress}))
}

func TestBroadcasterConcurrentUse(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(8, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := b.Subscribe("u", "doc")
			b.Unsubscribe(s)
		}()
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), "doc", Event{Type: EventHeartbeat})
		}()
	}
	wg.Wait()
	assert.Zero(t, b.Count("doc"))
}

func TestEventFromStatus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ev := EventFromStatus(models.ProcessingStatus{State: models.StateParsing, Progress: 40, Message: "Parsing", UpdatedAt: now})
	assert.Equal(t, EventProgress, ev.Type)
	assert.Equal(t, "parsing", ev.Stage)
	assert.False(t, ev.Terminal())

	ev = EventFromStatus(models.ProcessingStatus{State: models.StateError, Progress: 40, Message: "Failed", Error: "timeout"})
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "timeout", ev.Message)
	assert.True(t, ev.Terminal())

	ev = EventFromStatus(models.ProcessingStatus{State: models.StateCompleted, Progress: 100})
	assert.Equal(t, EventComplete, ev.Type)
}

func TestRedisRelayForwardsToLocalSubscribers(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	local := NewBroadcaster(4, quietLogger())
	relay := NewRedisRelay(rdb, local, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, relay.Start(ctx))

	sub := local.Subscribe("u1", "doc-1")
	defer local.Unsubscribe(sub)

	require.NoError(t, relay.Publish(ctx, "doc-1", Event{Type: EventComplete, Stage: "completed", Percentage: 100, Timestamp: time.Now()}))

	select {
	case ev := <-sub.C:
		assert.Equal(t, EventComplete, ev.Type)
		assert.Equal(t, 100, ev.Percentage)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward event")
	}
}

func TestDocumentFromChannel(t *testing.T) {
	t.Parallel()

	id, ok := documentFromChannel(Channel("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = documentFromChannel("session:abc:status")
	assert.False(t, ok)
}

func TestFollow(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(4, quietLogger())
	sub := b.Subscribe("u1", "doc")
	defer b.Unsubscribe(sub)

	var got []Event
	done := make(chan error, 1)
	go func() {
		done <- Follow(context.Background(), sub, Event{Type: EventProgress, Stage: "parsing", Percentage: 30}, 10*time.Millisecond, func(ev Event) error {
			got = append(got, ev)
			return nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	_ = b.Publish(context.Background(), "doc", Event{Type: EventComplete, Percentage: 100})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not return after terminal event")
	}

	require.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, EventConnected, got[0].Type)
	assert.Equal(t, 30, got[1].Percentage)
	assert.Equal(t, EventComplete, got[len(got)-1].Type)

	heartbeats := 0
	for _, ev := range got {
		if ev.Type == EventHeartbeat {
			heartbeats++
		}
	}
	assert.Positive(t, heartbeats)
}

func TestFollowTerminalCurrentReturnsImmediately(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(1, quietLogger())
	sub := b.Subscribe("u1", "doc")
	defer b.Unsubscribe(sub)

	var got []Event
	err := Follow(context.Background(), sub, Event{Type: EventComplete, Percentage: 100}, time.Hour, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventComplete, got[1].Type)
}
