package mqtt

// DefaultTopicPrefix is the prefix device firmware publishes telemetry under.
const DefaultTopicPrefix = "reportApp"

// Topics builds topic names for the device telemetry hierarchy.
//
// The prefix is shared with the device publishers and is part of the wire
// contract; callers pass the already-normalized (uppercase) device ID.
//
//	topics := mqtt.Topics{Prefix: "reportApp"}
//	topic := topics.DeviceReport("P240819126")
//	// Returns: "reportApp/P240819126"
type Topics struct {
	Prefix string
}

// prefix returns the configured prefix or DefaultTopicPrefix.
func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceReport returns the topic a device publishes its telemetry reports on.
//
// Example: reportApp/P240819126
func (t Topics) DeviceReport(deviceID string) string {
	return t.prefix() + "/" + deviceID
}
