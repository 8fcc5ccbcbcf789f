package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the node.
const (
	MeasurementButton  = "button"
	MeasurementLED     = "led"
	MeasurementLink    = "link"
	MeasurementSession = "session"
)

// WriteButton records a debounced button transition.
func (c *Client) WriteButton(pressed bool) {
	c.write(MeasurementButton, nil, map[string]interface{}{"pressed": pressed})
}

// WriteLED records an applied LED level.
func (c *Client) WriteLED(level int) {
	c.write(MeasurementLED, nil, map[string]interface{}{"level": level})
}

// WriteLinkState records a connectivity state change.
// addr is empty unless the link is connected.
func (c *Client) WriteLinkState(state, addr string) {
	fields := map[string]interface{}{"state": state}
	if addr != "" {
		fields["addr"] = addr
	}
	c.write(MeasurementLink, nil, fields)
}

// WriteSessionState records a messaging session state change.
func (c *Client) WriteSessionState(state string) {
	c.write(MeasurementSession, nil, map[string]interface{}{"state": state})
}

// write tags the point with the device name and hands it to the batcher.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	if c.closed.Load() {
		return
	}

	all := map[string]string{"device": c.device}
	for k, v := range tags {
		all[k] = v
	}

	c.writer.WritePoint(write.NewPoint(measurement, all, fields, c.now()))
	c.points.Add(1)
}

// setClock replaces the timestamp source.
func (c *Client) setClock(now func() time.Time) {
	c.now = now
}
