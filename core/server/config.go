package server

import (
	"crypto/tls"
	"net"
	"strconv"
	"time"
)

const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 28785
	DefaultShutdownGrace = 2500 * time.Millisecond
)

// Config holds server settings. It loads from the environment and from
// YAML, see the config package.
type Config struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0" yaml:"host"`
	Port int    `env:"SERVER_PORT" envDefault:"28785" yaml:"port"`

	// SSL requires TLSCertFile and TLSKeyFile.
	SSL         bool   `env:"SERVER_SSL" yaml:"ssl"`
	TLSCertFile string `env:"SERVER_TLS_CERT_FILE" yaml:"tls_cert_file"`
	TLSKeyFile  string `env:"SERVER_TLS_KEY_FILE" yaml:"tls_key_file"`
	// TLSProfile is one of "default", "modern" or "intermediate".
	TLSProfile string `env:"SERVER_TLS_PROFILE" envDefault:"default" yaml:"tls_profile"`

	Debug bool `env:"SERVER_DEBUG" yaml:"debug"`

	ShutdownGrace time.Duration `env:"SERVER_SHUTDOWN_GRACE" envDefault:"2500ms" yaml:"shutdown_grace"`

	// Transport selects the adapter: "nethttp" or "fasthttp".
	Transport      string        `env:"SERVER_TRANSPORT" envDefault:"nethttp" yaml:"transport"`
	FallbackStatus int           `env:"SERVER_FALLBACK_STATUS" envDefault:"404" yaml:"fallback_status"`
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" yaml:"request_timeout"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s" yaml:"read_timeout"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s" yaml:"write_timeout"`
}

// Addr returns host:port. An empty host means DefaultHost; port 0 lets
// the system pick a free port.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// TLSConfig loads the certificate when SSL is enabled. It returns nil
// when SSL is off.
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.SSL {
		return nil, nil
	}
	if c.TLSCertFile == "" || c.TLSKeyFile == "" {
		return nil, ErrMissingTLSOptions
	}
	return loadTLSFromFiles(c.TLSCertFile, c.TLSKeyFile, c.TLSProfile)
}
