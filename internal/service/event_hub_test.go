package service

import (
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch chan LessonEvent) LessonEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lesson event")
		return LessonEvent{}
	}
}

func TestEventHubDeliversToCourseSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	defer hub.Stop()

	sub1 := hub.Subscribe(1)
	sub2 := hub.Subscribe(1)

	hub.Publish(LessonEvent{
		Type:     EventLessonUpdated,
		LessonID: 10,
		CourseID: 1,
		Data:     LessonEventData{MuxStatus: model.VideoReady, PlaybackID: "pb-1", Duration: 120},
	})

	for _, sub := range []*EventSubscriber{sub1, sub2} {
		event := recvEvent(t, sub.Ch)
		assert.Equal(t, EventLessonUpdated, event.Type)
		assert.Equal(t, uint(10), event.LessonID)
		assert.Equal(t, model.VideoReady, event.Data.MuxStatus)
	}
}

func TestEventHubIsolatesCourses(t *testing.T) {
	hub := NewEventHub(nil)
	defer hub.Stop()

	sub := hub.Subscribe(2)
	hub.Publish(LessonEvent{Type: EventLessonUpdated, LessonID: 10, CourseID: 1})

	select {
	case event := <-sub.Ch:
		t.Fatalf("subscriber of course 2 received event for course %d", event.CourseID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewEventHub(nil)
	defer hub.Stop()

	sub := hub.Subscribe(1)
	hub.Unsubscribe(sub)
	// 重复摘除无害
	hub.Unsubscribe(sub)

	hub.Publish(LessonEvent{Type: EventLessonUpdated, LessonID: 10, CourseID: 1})

	select {
	case <-sub.Ch:
		t.Fatal("unsubscribed connection still received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHubDropsEventsForSlowSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	defer hub.Stop()

	slow := hub.Subscribe(1)
	for i := 0; i < subscriberQueue+5; i++ {
		hub.Publish(LessonEvent{Type: EventLessonUpdated, LessonID: uint(i), CourseID: 1})
	}

	// 队列满后多余事件被丢弃，Publish 不会阻塞
	assert.Len(t, slow.Ch, subscriberQueue)
}

func TestEventHubStopReleasesConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(monitoring.SSEConnections)

	hub := NewEventHub(nil)
	sub1 := hub.Subscribe(1)
	sub2 := hub.Subscribe(2)
	assert.Equal(t, before+2, testutil.ToFloat64(monitoring.SSEConnections))

	// Stop 摘除全部订阅者，计数随之归还
	hub.Stop()
	assert.Equal(t, before, testutil.ToFloat64(monitoring.SSEConnections))

	// 连接收尾时迟到的 Unsubscribe 不会重复递减
	hub.Unsubscribe(sub1)
	hub.Unsubscribe(sub2)
	assert.Equal(t, before, testutil.ToFloat64(monitoring.SSEConnections))
}

func TestEventHubStopClosesSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	sub := hub.Subscribe(1)

	hub.Stop()

	select {
	case _, open := <-sub.done:
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("done channel not closed on Stop")
	}
}
