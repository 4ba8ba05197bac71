package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/blockberries/abci/frame"
)

// Config tunes a Server. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// MaxFrameSize bounds one request frame body. Larger frames
	// terminate the session.
	MaxFrameSize uint64

	// ReadBufferSize is the size of one transport read.
	ReadBufferSize int
	// WriteBufferSize is the size of the per-session response buffer.
	WriteBufferSize int

	// MaxConnections bounds concurrent sessions. 0 means unbounded.
	MaxConnections int64

	// AcceptRate limits accepted connections per second. 0 disables
	// the limit.
	AcceptRate  float64
	AcceptBurst int

	// CheckBlockCycle enables the per-session block-cycle tracker.
	CheckBlockCycle bool

	// ShutdownTimeout bounds how long Close waits for sessions to
	// finish their in-flight callback. 0 waits indefinitely.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration used by the reference
// binaries.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:    frame.DefaultMaxFrameSize,
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckBlockCycle: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	return c
}

func (c Config) acceptLimiter() *rate.Limiter {
	if c.AcceptRate <= 0 {
		return nil
	}
	burst := c.AcceptBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.AcceptRate), burst)
}
