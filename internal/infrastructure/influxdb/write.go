package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("sensors",
//	    map[string]string{"session_id": id},
//	    map[string]any{"temperature": 22.5, "humidity": 45})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. The write is
// non-blocking; points are batched and failures reported via SetOnError.
// Points with no fields are dropped, as InfluxDB rejects them.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if measurement == "" || len(fields) == 0 {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return
	}
	c.written.Add(1)
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
