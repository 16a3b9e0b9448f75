// Package config provides configuration loading for semcommunity.
//
// Config groups the community build settings (graphclustering.Config) with
// the text generator, persistence backend, NATS connection, logging and
// metrics settings. Files may be YAML or JSON.
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.yaml") // Overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Layer Merging
//
// Layers are decoded in order over Default(). A layer only replaces the
// fields it names:
//
//	base.yaml:
//	  community: {concurrency: 8}
//	  log: {level: debug}
//
//	production.yaml:
//	  log: {level: warn}
//
//	Result: concurrency 8, log level warn
//
// Unknown fields are rejected.
//
// # Environment Variable Overrides
//
// After the layers, SEMCOMMUNITY_* variables override individual fields:
//
//	export SEMCOMMUNITY_LLM_PROVIDER=openai
//	export SEMCOMMUNITY_LLM_API_KEY=sk-...
//	export SEMCOMMUNITY_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// # Security
//
// Config files are limited to 10MB, must be regular files with a .yaml,
// .yml or .json extension, and relative paths may not leave the working
// directory. Credentials are masked by Redacted and String.
package config
