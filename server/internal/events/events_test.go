package events

import (
	"testing"
	"time"

	"github.com/marcopiovanello/dlp-bridge/server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("nothing received")
	}
	var zero T
	return zero
}

func assertEmpty[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value %v", v)
		}
	default:
	}
}

func TestStreamWithoutReplay(t *testing.T) {
	s := NewStream[string](4, false)
	s.Publish("missed")

	ch, cancel := s.Subscribe()
	defer cancel()

	assertEmpty(t, ch)

	s.Publish("boom")
	assert.Equal(t, "boom", receive(t, ch))
}

func TestStreamReplaysLatest(t *testing.T) {
	s := NewStream[*internal.DownloadProgress](4, true)

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Publish(&internal.DownloadProgress{Percent: 10})
	s.Publish(nil)

	ch, cancel := s.Subscribe()
	defer cancel()

	// the cleared sentinel is replayed, not skipped
	assert.Nil(t, receive(t, ch))

	s.Publish(&internal.DownloadProgress{Percent: 20})
	assert.Equal(t, 20.0, receive(t, ch).Percent)
}

func TestStreamPublishDoesNotBlock(t *testing.T) {
	s := NewStream[int](1, false)
	ch, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, 0, receive(t, ch))
	assert.Equal(t, uint64(99), s.Dropped())
}

func TestReplayStreamKeepsLatestForSlowSubscriber(t *testing.T) {
	s := NewStream[int](1, true)
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		s.Publish(i)
	}

	assert.Equal(t, 5, receive(t, ch))
}

func TestStreamUnsubscribe(t *testing.T) {
	s := NewStream[int](2, false)
	ch, cancel := s.Subscribe()
	other, cancelOther := s.Subscribe()
	defer cancelOther()

	require.Equal(t, 2, s.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 1, s.Subscribers())

	s.Publish(7)
	assert.Equal(t, 7, receive(t, other))
}

func TestStreamClose(t *testing.T) {
	s := NewStream[int](2, true)
	ch, cancel := s.Subscribe()

	s.Close()
	s.Publish(1)

	_, ok := <-ch
	assert.False(t, ok)

	// unsubscribing after close is harmless
	cancel()

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHubFeed(t *testing.T) {
	h := NewHub(8)
	defer h.Close()

	feed, cancel := h.Feed.Subscribe()
	defer cancel()
	errs, cancelErrs := h.Errors.Subscribe()
	defer cancelErrs()

	h.PublishProgress("s1", nil)
	h.PublishProgress("s1", &internal.DownloadProgress{Percent: 42})
	h.PublishError("s1", "network down")
	h.PublishCompletion("s2")

	ev := receive(t, feed)
	assert.Equal(t, KindProgress, ev.Kind)
	assert.Nil(t, ev.Progress)

	ev = receive(t, feed)
	assert.Equal(t, 42.0, ev.Progress.Percent)

	ev = receive(t, feed)
	assert.Equal(t, KindError, ev.Kind)
	assert.Equal(t, "network down", ev.Message)
	assert.Equal(t, "network down", receive(t, errs))

	ev = receive(t, feed)
	assert.Equal(t, KindCompleted, ev.Kind)
	assert.Equal(t, "s2", ev.SessionId)

	done, ok := h.Completion.Latest()
	assert.True(t, ok)
	assert.True(t, done)
}

func TestHubClearCompletion(t *testing.T) {
	h := NewHub(4)
	defer h.Close()

	feed, cancel := h.Feed.Subscribe()
	defer cancel()

	h.PublishCompletion("s1")
	receive(t, feed)

	h.ClearCompletion()

	done, cancelDone := h.Completion.Subscribe()
	defer cancelDone()
	assert.False(t, receive(t, done))
	assertEmpty(t, feed)
}

func TestBus(t *testing.T) {
	b := NewBus()

	var fetched []*internal.MediaInfo
	var finished []internal.SessionRecord

	require.NoError(t, b.OnMetadataFetched(func(info *internal.MediaInfo) {
		fetched = append(fetched, info)
	}))
	require.NoError(t, b.OnSessionFinished(func(rec internal.SessionRecord) {
		finished = append(finished, rec)
	}))

	b.MetadataFetched(&internal.MediaInfo{Title: "a"})
	b.MetadataFetched(nil)
	b.SessionFinished(internal.SessionRecord{Id: "s1", Status: internal.StatusCompleted})

	require.Len(t, fetched, 1)
	assert.Equal(t, "a", fetched[0].Title)
	require.Len(t, finished, 1)
	assert.Equal(t, "s1", finished[0].Id)
}
