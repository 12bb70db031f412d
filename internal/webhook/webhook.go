// Package webhook delivers outbound event notifications to chatbot owners.
//
// Delivery is fire-and-forget: events are queued onto a bounded channel and
// posted by a small worker pool, so a slow or dead endpoint never blocks
// message processing. Events that cannot be queued (full buffer, closed
// dispatcher) are dropped with a log line; the webhook channel is advisory,
// the database remains the source of truth.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Event types emitted by the conversation service.
const (
	EventMessageProcessed  = "message.processed"
	EventLeadCaptured      = "lead.captured"
	EventConversationEnded = "conversation.ended"
)

// Event is the payload posted to the owner's webhook URL.
type Event struct {
	Type           string    `json:"type"`
	ChatbotID      string    `json:"chatbot_id"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Timestamp      time.Time `json:"timestamp"`
	Data           any       `json:"data,omitempty"`
}

type job struct {
	url   string
	event Event
}

var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Outbound webhook delivery attempts by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

// Dispatcher posts events to webhook endpoints from a bounded worker pool.
// The zero value is not usable; construct with NewDispatcher.
type Dispatcher struct {
	client *http.Client
	jobs   chan job

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a buffer-sized queue.
// timeout bounds each HTTP POST. Non-positive arguments select defaults.
func NewDispatcher(workers, buffer int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		client: &http.Client{Timeout: timeout},
		jobs:   make(chan job, buffer),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue queues an event for delivery to url. It returns immediately and
// never blocks: when the buffer is full or the dispatcher is closed, the
// event is dropped and counted. A blank url is a no-op.
func (d *Dispatcher) Enqueue(url string, ev Event) {
	if url == "" {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		deliveries.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case d.jobs <- job{url: url, event: ev}:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		deliveries.WithLabelValues("dropped").Inc()
		log.Warn().
			Str("chatbot_id", ev.ChatbotID).
			Str("event", ev.Type).
			Msg("webhook queue full, event dropped")
	}
}

// Close stops accepting events and waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	body, err := json.Marshal(j.event)
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("event", j.event.Type).Msg("webhook payload marshal failed")
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("url", j.url).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chatforge-webhook/1.0")
	req.Header.Set("X-Chatforge-Event", j.event.Type)

	resp, err := d.client.Do(req)
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		log.Warn().Err(err).
			Str("url", j.url).
			Str("event", j.event.Type).
			Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		deliveries.WithLabelValues("ok").Inc()
		return
	}
	deliveries.WithLabelValues("rejected").Inc()
	log.Warn().
		Str("url", j.url).
		Str("event", j.event.Type).
		Int("status", resp.StatusCode).
		Msg("webhook endpoint rejected event")
}
