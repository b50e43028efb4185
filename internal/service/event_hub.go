package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventChannel    = "lesson_events" // redis pub/sub 频道
	sseHeartbeat    = 15 * time.Second
	subscriberQueue = 8
)

const EventLessonUpdated = "lesson:updated"

// LessonEvent 视频处理状态变化时推送给打开的后台会话。
// 尽力而为：只送达当前在线的订阅者，不回放、不持久化；
// 订阅晚于事件的客户端需要自行重新拉取当前状态。
type LessonEvent struct {
	Type     string          `json:"type"`
	LessonID uint            `json:"lessonId"`
	CourseID uint            `json:"courseId"`
	Data     LessonEventData `json:"data"`
}

type LessonEventData struct {
	MuxStatus    model.VideoStatus `json:"muxStatus"`
	PlaybackID   string            `json:"playbackId,omitempty"`
	ThumbnailURL string            `json:"thumbnailUrl,omitempty"`
	Duration     int               `json:"duration,omitempty"`
}

// EventSubscriber 一条打开的课程事件订阅连接
type EventSubscriber struct {
	ID       uuid.UUID
	CourseID uint
	Ch       chan LessonEvent
	done     chan struct{}
}

// EventHub 按课程分组的事件广播器。
// 订阅者集合是进程内状态；配置了 Redis 时通过 pub/sub 做跨实例转发，
// 交付语义仍是尽力而为。
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[*EventSubscriber]bool

	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
}

func NewEventHub(rdb *redis.Client) *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		subscribers: make(map[uint]map[*EventSubscriber]bool),
		rdb:         rdb,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run 启动跨实例转发循环（未配置 Redis 时直接空转返回）
func (h *EventHub) Run() {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.Subscribe(h.ctx, eventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event LessonEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Log.Error("lesson event unmarshal error", zap.Error(err))
				continue
			}
			h.deliverLocal(event)
		}
	}
}

func (h *EventHub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subscribers {
		for sub := range subs {
			close(sub.done)
			// 这里已摘除，连接收尾时的 Unsubscribe 不会再减
			monitoring.SSEConnections.Dec()
		}
	}
	h.subscribers = make(map[uint]map[*EventSubscriber]bool)
}

// Subscribe 为某课程注册一条订阅连接
func (h *EventHub) Subscribe(courseID uint) *EventSubscriber {
	sub := &EventSubscriber{
		ID:       uuid.New(),
		CourseID: courseID,
		Ch:       make(chan LessonEvent, subscriberQueue),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	subs, ok := h.subscribers[courseID]
	if !ok {
		subs = make(map[*EventSubscriber]bool)
		h.subscribers[courseID] = subs
	}
	subs[sub] = true
	h.mu.Unlock()

	monitoring.SSEConnections.Inc()
	logger.Log.Debug("event subscriber added",
		zap.String("subscriberId", sub.ID.String()),
		zap.Uint("courseId", courseID))
	return sub
}

// Unsubscribe 摘除连接；对已摘除的连接重复调用是无害的
func (h *EventHub) Unsubscribe(sub *EventSubscriber) {
	h.mu.Lock()
	subs, ok := h.subscribers[sub.CourseID]
	removed := false
	if ok {
		if subs[sub] {
			delete(subs, sub)
			removed = true
		}
		if len(subs) == 0 {
			delete(h.subscribers, sub.CourseID)
		}
	}
	h.mu.Unlock()

	if removed {
		monitoring.SSEConnections.Dec()
	}
}

// Publish 广播事件。配置了 Redis 时经由 pub/sub（本实例由转发循环送达本地），
// 否则直接本地派发。
func (h *EventHub) Publish(event LessonEvent) {
	if h.rdb != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Log.Error("lesson event marshal error", zap.Error(err))
			return
		}
		if err := h.rdb.Publish(h.ctx, eventChannel, payload).Err(); err != nil {
			logger.Log.Error("lesson event publish error", zap.Error(err))
			// Redis 不可用时退化为本地派发
			h.deliverLocal(event)
		}
		return
	}
	h.deliverLocal(event)
}

func (h *EventHub) deliverLocal(event LessonEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[event.CourseID]
	if !ok {
		return
	}
	for sub := range subs {
		select {
		case sub.Ch <- event:
		default:
			// 慢消费者：丢弃而不是阻塞广播
			logger.Log.Warn("dropping lesson event, subscriber queue full",
				zap.String("subscriberId", sub.ID.String()))
		}
	}
}

// ServeSSE 以 Server-Sent Events 保持长连接推送，直到客户端断开
func (h *EventHub) ServeSSE(c *gin.Context, sub *EventSubscriber) {
	defer h.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case event := <-sub.Ch:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Log.Warn("failed to marshal lesson event", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
