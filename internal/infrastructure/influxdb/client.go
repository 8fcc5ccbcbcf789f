package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// Points held for retry while the wireless link is down.
	retryBufferPoints = 5000
	maxRetries        = 0 // retry until the buffer overflows
	maxRetryTime      = 30 * time.Minute
	requestTimeout    = 10 * time.Second
	pingTimeout       = 5 * time.Second
)

// pointWriter is the subset of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Stats counts points handed to the library and write failures it reported.
type Stats struct {
	Points uint64
	Errors uint64
}

// Client exports node telemetry to InfluxDB v2.
//
// New does not contact the server: the node starts before its link is up,
// so points are batched and retried by the library until the server is
// reachable. Failures surface through the SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client influxdb2.Client
	writer pointWriter
	device string
	now    func() time.Time

	closed atomic.Bool
	points atomic.Uint64
	errors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// New creates the exporter for cfg without contacting the server.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//   - device: Value of the "device" tag on every point
//
// Returns:
//   - *Client: Exporter ready for writes
//   - error: ErrDisabled if influxdb.enabled is false
func New(cfg config.InfluxDBConfig, device string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options(cfg))
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := newClient(writeAPI, device)
	c.client = client
	go c.drainErrors(writeAPI.Errors())
	return c, nil
}

// options tunes the write API for a node on an unreliable link: gzip to
// save airtime and a bounded retry buffer that rides out outages.
func options(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval) * 1000).
		SetUseGZip(true).
		SetRetryBufferLimit(retryBufferPoints).
		SetMaxRetries(maxRetries).
		SetMaxRetryTime(uint(maxRetryTime.Milliseconds())).
		SetHTTPRequestTimeout(uint(requestTimeout.Seconds()))
}

func newClient(w pointWriter, device string) *Client {
	return &Client{
		writer: w,
		device: device,
		now:    time.Now,
	}
}

// drainErrors forwards asynchronous write failures until the library
// closes the channel.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.errors.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{Points: c.points.Load(), Errors: c.errors.Load()}
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() || c.client == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// Flush forces buffered points out. No-op after Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	c.writer.Flush()
}

// Close flushes pending points and shuts the client down. Only the first
// call has any effect.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writer.Flush()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
