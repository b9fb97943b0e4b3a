// Package config loads the client configuration from config.yml, a
// .env file, and RELOOM_-prefixed environment variables (in increasing
// precedence), then applies defaults and validates the result.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := httpapi.New(cfg.API)
package config
