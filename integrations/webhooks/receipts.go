package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"promisevault/core/types"
)

// EventType is the webhook topic header value.
type EventType string

const (
	// EventReceipt is sent once per committed transaction.
	EventReceipt EventType = "ledger.receipt"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultTimeout     = 15 * time.Second
)

// ErrClosed is returned when publishing to a stopped dispatcher.
var ErrClosed = errors.New("webhook: dispatcher closed")

// ReceiptPayload is the webhook body.
type ReceiptPayload struct {
	Type       EventType      `json:"type"`
	DeliveryID string         `json:"deliveryId"`
	Sequence   uint64         `json:"sequence"`
	TxHash     string         `json:"txHash"`
	Signer     string         `json:"signer"`
	Timestamp  int64          `json:"timestamp"`
	Events     []*types.Event `json:"events"`
}

// Dispatcher delivers receipts to one endpoint with retry and exponential
// backoff. Bodies are signed with HMAC-SHA256 over the shared secret.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	timeout     time.Duration
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	prefixes    []string
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	id   string
	body []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries. A positive
// client Timeout also becomes the per-attempt deadline.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
			if client.Timeout > 0 {
				d.timeout = client.Timeout
			}
		}
	}
}

// WithAttemptTimeout bounds each delivery attempt.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithEventPrefixes restricts deliveries to receipts carrying at least one
// event whose type starts with one of prefixes, e.g. "promise.".
func WithEventPrefixes(prefixes ...string) Option {
	return func(d *Dispatcher) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				d.prefixes = append(d.prefixes, p)
			}
		}
	}
}

// WithLogger sets the logger used to report abandoned deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{},
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops the dispatcher and waits for the inflight delivery.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

// Publish queues receipt for delivery. It implements the runtime's receipt
// sink and only blocks when the queue is full.
func (d *Dispatcher) Publish(ctx context.Context, receipt *types.Receipt) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	if receipt == nil || !d.matches(receipt) {
		return nil
	}
	payload := ReceiptPayload{
		Type:       EventReceipt,
		DeliveryID: uuid.NewString(),
		Sequence:   receipt.Sequence,
		TxHash:     receipt.TxHash,
		Signer:     receipt.Signer,
		Timestamp:  receipt.Timestamp,
		Events:     receipt.Events,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case d.queue <- delivery{id: payload.DeliveryID, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrClosed
	}
}

func (d *Dispatcher) matches(receipt *types.Receipt) bool {
	if len(d.prefixes) == 0 {
		return true
	}
	for _, evt := range receipt.Events {
		for _, prefix := range d.prefixes {
			if strings.HasPrefix(evt.Type, prefix) {
				return true
			}
		}
	}
	return false
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	backoff := d.minBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Warn("webhook delivery abandoned",
				slog.String("delivery", job.id),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()))
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Promisevault-Event", string(EventReceipt))
	req.Header.Set("X-Promisevault-Delivery", job.id)
	req.Header.Set("X-Promisevault-Signature", Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
