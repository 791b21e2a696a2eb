// Package config loads typed configuration from the environment, an
// optional .env file and an optional YAML file.
//
//	type ServerConfig struct {
//		Host string `env:"SERVER_HOST" envDefault:"0.0.0.0" yaml:"host"`
//		Port int    `env:"SERVER_PORT" envDefault:"28785" yaml:"port"`
//	}
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Load parses the environment with caarlos0/env once per type and caches
// the result; later calls for the same type copy the cached value. A .env
// file in the working directory is read on first use and never overrides
// variables that are already set.
//
// LoadFile layers envDefault values, then a YAML file, then the
// variables actually set in the environment. Keys missing from the file
// keep their defaults; explicit false and 0 in the file are kept.
package config
