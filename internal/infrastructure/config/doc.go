// Package config handles loading and validating toio bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files (optional for MCP launches)
//   - Overriding with TOIO_BRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords, InfluxDB tokens and the JWT secret should come from
//     environment variables rather than the file
//   - logging.output may not be stdout; the MCP stdio stream owns it
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.MCP.Name)
package config
