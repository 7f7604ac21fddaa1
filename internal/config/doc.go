// Package config provides configuration management for the condition worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development; RULES_PATH
// is optional and enables named rule sets.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
