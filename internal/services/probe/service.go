// Package probe provides UDP liveness probes for GoldSource and Source servers.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fgeck/hldswatch/internal/models"
	"github.com/rs/zerolog"
)

// maxReplySize is the largest reply datagram read per attempt.
const maxReplySize = 4096

// Query packets.
var header = []byte{0xFF, 0xFF, 0xFF, 0xFF}

const (
	a2aPing = "\x69\x00"
	a2sInfo = "TSource Engine Query\x00"
)

// Reply signatures found at offset 4 of a valid answer.
const (
	a2aAck       = 'j'
	s2aInfoReply = 'I'
)

// Request returns the query datagram sent to a server of the given engine.
func Request(engine models.Engine) []byte {
	body := a2sInfo
	if engine == models.EngineGoldSource {
		body = a2aPing
	}

	packet := make([]byte, 0, len(header)+len(body))
	packet = append(packet, header...)
	return append(packet, body...)
}

// Signature returns the byte expected at offset 4 of a reply from a live server.
func Signature(engine models.Engine) byte {
	if engine == models.EngineGoldSource {
		return a2aAck
	}
	return s2aInfoReply
}

// IsAlive reports whether reply proves that the server is up.
// Only the signature byte is inspected.
func IsAlive(engine models.Engine, reply []byte) bool {
	return len(reply) > len(header) && reply[len(header)] == Signature(engine)
}

// Service defines the interface for liveness probes.
type Service interface {
	Probe(ctx context.Context, addr models.TargetAddress, engine models.Engine) *models.ProbeResult
}

// Dialer opens datagram connections; allows mocking the network in tests.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options controls the retry behavior of a probe.
type Options struct {
	Timeout   time.Duration // per attempt
	Retries   int           // attempts per probe
	RetryWait time.Duration // after each failed attempt
}

// OptionsFromSettings extracts the probe options from the monitor settings.
func OptionsFromSettings(s models.Settings) Options {
	return Options{
		Timeout:   s.QueryTimeout,
		Retries:   s.QueryRetries,
		RetryWait: s.RetryWait,
	}
}

// Impl implements the probe Service interface.
type Impl struct {
	dialer Dialer
	opts   Options
	logger zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger, opts Options) *Impl {
	return &Impl{
		dialer: &net.Dialer{},
		opts:   opts,
		logger: logger,
	}
}

// NewWithDialer creates a new probe service with a custom dialer (for testing).
func NewWithDialer(logger zerolog.Logger, opts Options, dialer Dialer) *Impl {
	return &Impl{
		dialer: dialer,
		opts:   opts,
		logger: logger,
	}
}

// Probe checks whether the server at addr answers queries.
// Network errors never escape; they count as failed attempts. The wait after
// every failed attempt, the last one included, is part of the probe.
func (s *Impl) Probe(ctx context.Context, addr models.TargetAddress, engine models.Engine) *models.ProbeResult {
	result := &models.ProbeResult{}
	start := time.Now()
	packet := Request(engine)

	var conn net.Conn
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		result.Attempts = attempt

		var err error
		if conn == nil {
			conn, err = s.dialer.DialContext(ctx, "udp", addr.String())
			if err != nil {
				conn = nil
				err = fmt.Errorf("dial: %w", err)
			}
		}

		if err == nil {
			var alive bool
			alive, err = s.attempt(conn, packet, engine)
			if alive {
				result.Alive = true
				result.Duration = time.Since(start)
				s.logger.Debug().
					Str("target", addr.String()).
					Int("attempt", attempt).
					Dur("duration", result.Duration).
					Msg("server answered")
				return result
			}
		}

		s.logger.Debug().
			Err(err).
			Str("target", addr.String()).
			Int("attempt", attempt).
			Int("retries", s.opts.Retries).
			Msg("no valid answer")

		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result
		case <-time.After(s.opts.RetryWait):
		}
	}

	result.Duration = time.Since(start)
	return result
}

// attempt sends one query and waits for one reply.
// A nil error with false means a reply arrived but did not carry the signature.
func (s *Impl) attempt(conn net.Conn, packet []byte, engine models.Engine) (bool, error) {
	if err := conn.SetDeadline(time.Now().Add(s.opts.Timeout)); err != nil {
		return false, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(packet); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}

	buf := make([]byte, maxReplySize)
	n, err := conn.Read(buf)
	if err != nil {
		return false, fmt.Errorf("receive: %w", err)
	}

	return IsAlive(engine, buf[:n]), nil
}
