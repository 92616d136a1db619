package health

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prober runs a round-trip query against the database.
type Prober interface {
	Probe(ctx context.Context) error
}

// Checker is a one-shot database reachability probe. It never retries.
type Checker struct {
	db      Prober
	addr    string // host:port for the TCP pre-check; empty skips it
	timeout time.Duration
	log     log.FieldLogger
}

// New creates a Checker. addr may be empty for file-backed databases.
func New(db Prober, addr string, timeout time.Duration, logger log.FieldLogger) *Checker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Checker{db: db, addr: addr, timeout: timeout, log: logger.WithField("component", "health")}
}

// Run dials the server once, then runs the probe query, all within the
// configured timeout. Any failure is returned.
func (c *Checker) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.addr != "" {
		if err := dial(ctx, c.addr); err != nil {
			c.log.WithError(err).Error("Database connection failed: server unreachable")
			return err
		}
		c.log.Debugf("TCP connection to %s succeeded", c.addr)
	}

	if err := c.db.Probe(ctx); err != nil {
		c.log.WithError(err).Error("Database connection failed")
		return err
	}
	c.log.Info("Database connection successful!")
	return nil
}

func dial(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	conn.Close()
	return nil
}
