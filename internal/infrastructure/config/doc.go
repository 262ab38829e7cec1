// Package config handles loading and validating MDM core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_MDM_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The APNs key passphrase and MQTT/InfluxDB credentials should be set
//     via environment variables, not committed to the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.ServerURL())
package config
