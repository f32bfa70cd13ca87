package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementVerification is the measurement every live check is written to.
const MeasurementVerification = "device_verification"

// WriteVerification records one live verification attempt.
//
// Tags are device_id and outcome. Fields are duration_ms, data_length, and
// exists, where exists is 1 for "exists", 0 for "not_found" and -1 otherwise,
// so the tri-state can be graphed on one axis.
//
// The write is non-blocking; it is a no-op when the client is closed.
//
// Example:
//
//	client.WriteVerification("P240819126", "exists", 340*time.Millisecond, 128)
func (c *Client) WriteVerification(deviceID, outcome string, duration time.Duration, dataLength int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementVerification,
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"data_length": int64(dataLength),
			"exists":      existsValue(outcome),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// existsValue maps an outcome name onto 1, 0, or -1.
func existsValue(outcome string) int64 {
	switch outcome {
	case "exists":
		return 1
	case "not_found":
		return 0
	default:
		return -1
	}
}
