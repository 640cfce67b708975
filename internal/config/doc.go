// Package config builds the server's Config value from defaults, an optional
// YAML or JSON file, and the positional "[threads] [port]" arguments.
//
//	cfg := config.Default()
//	if path != "" {
//	    fc, err := config.LoadFile(path)
//	    ...
//	    cfg, err = fc.Apply(cfg)
//	}
//	cfg, err = config.FromArgs(flag.Args(), cfg)
//	if err := cfg.Validate(); err != nil { ... }
//
// A sample file:
//
//	server:
//	  threads: 8
//	  port: 7878
//	  sleep_delay: 2s
//	  recover_panics: true
//	admin:
//	  enabled: true
//	  addr: 127.0.0.1:9090
//	log:
//	  level: debug
package config
