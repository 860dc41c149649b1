package clickhouse

import (
	"fmt"
	"net/url"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig describes one ClickHouse endpoint and its pool.
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	HTTP     bool

	PoolOpen     int
	PoolIdle     int
	PoolLifetime time.Duration

	DialTimeout time.Duration
	ReadTimeout time.Duration
	MaxExecTime time.Duration

	AsyncInsert  bool
	WaitForAsync bool
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:         9000,
		Database:     "default",
		PoolOpen:     10,
		PoolIdle:     5,
		PoolLifetime: 5 * time.Minute,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
}

// WithEndpoint sets host, port and database. A zero port or empty database keeps the default.
func WithEndpoint(host string, port int, database string) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		if port > 0 {
			c.Port = port
		}
		if database != "" {
			c.Database = database
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(on bool) ClientOption {
	return func(c *ClientConfig) { c.HTTP = on }
}

// WithPool sizes the database/sql pool.
func WithPool(open, idle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if open > 0 {
			c.PoolOpen = open
		}
		if idle >= 0 {
			c.PoolIdle = idle
		}
		if lifetime > 0 {
			c.PoolLifetime = lifetime
		}
	}
}

// WithTimeouts sets the dial and read timeouts and the server-side query limit.
func WithTimeouts(dial, read, maxExec time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
		c.MaxExecTime = maxExec
	}
}

// WithAsyncInsert lets the server buffer path inserts. wait makes each insert block until
// the buffer is flushed.
func WithAsyncInsert(on, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = on
		c.WaitForAsync = on && wait
	}
}

// DSN renders the config as a clickhouse-go connection string.
func (c ClientConfig) DSN() string {
	scheme := "clickhouse"
	if c.HTTP {
		scheme = "http"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}

	q := url.Values{}
	if c.DialTimeout > 0 {
		q.Set("dial_timeout", c.DialTimeout.String())
	}
	if c.ReadTimeout > 0 {
		q.Set("read_timeout", c.ReadTimeout.String())
	}
	if c.MaxExecTime > 0 {
		q.Set("max_execution_time", fmt.Sprint(int(c.MaxExecTime.Seconds())))
	}
	if c.AsyncInsert {
		q.Set("async_insert", "1")
		if c.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
