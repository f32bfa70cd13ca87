// Package config handles loading and validating the verification service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MQTTVERIFY_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Configuration is loaded once at startup. There is no runtime
// reconfiguration; a validation failure is fatal.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.TopicPrefix)
package config
