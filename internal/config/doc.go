// Package config loads dagrun settings from environment variables.
//
// Every value has a default suited to a single-process development setup:
// in-memory storage and events, no LLM provider. Selecting the redis or
// postgres backends makes their connection settings mandatory.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
