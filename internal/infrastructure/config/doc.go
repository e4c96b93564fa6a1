// Package config handles loading and validating homesim configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file
//   - Overriding with HOMESIM_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (JWT secret, login password, tokens) should be set via
//     environment variables or .env, not committed YAML
//   - security.login.password_hash (argon2id) is preferred over a plain password
//
// Usage:
//
//	cfg, err := config.Load(config.ResolvePath(*configFlag))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.GetTickInterval())
package config
