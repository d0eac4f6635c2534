// Package config loads and validates YAML configuration for streamwatch.
//
// Config files support ${VAR} environment variable expansion, e.g.:
//
//	stream:
//	  url: wss://stream.stockpulse.io/ws
//	  auth_token: ${STREAM_AUTH_TOKEN}
package config
