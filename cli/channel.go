// Package cli implements the session bring-up protocol engine for
// line-oriented network device CLIs: a channel abstraction over SSH or
// telnet transports, a command mode model, and a sequencer that drives
// a freshly connected session into a known automation-ready state.
package cli

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"
)

type hasPrintf interface {
	Printf(fmt string, v ...interface{})
}

type hasTimeout interface {
	Timeout() bool
}

// transp is the raw byte stream under a Channel.
type transp interface {
	Read(b []byte) (n int, err error)
	Write(b []byte) (n int, err error)
	SetDeadline(t time.Time) error
	Close() error
	EofIsError() bool
}

// Attributes control channel pacing.
type Attributes struct {
	ReadTimeout    time.Duration // max idle time between reads
	MatchTimeout   time.Duration // overall limit waiting for a pattern
	SendTimeout    time.Duration
	SuppressAutoLF bool
}

// cancelPollInterval caps single blocking reads so a caller-level
// cancellation is honored promptly while waiting for device output.
const cancelPollInterval = 250 * time.Millisecond

// Channel couples one transport with the expect engine. A Channel is
// exclusively owned by whoever drives it; it performs no locking.
// The Channel never opens, authenticates or re-opens the transport.
type Channel struct {
	t      transp
	attr   Attributes
	logger hasPrintf
	label  string
	debug  bool
}

// NewChannel wraps an open transport.
func NewChannel(t transp, attr Attributes, logger hasPrintf, label string, debug bool) *Channel {
	return &Channel{t: t, attr: attr, logger: logger, label: label, debug: debug}
}

// Attr returns a copy of the channel pacing attributes.
func (c *Channel) Attr() Attributes {
	return c.attr
}

// SetAttr replaces the channel pacing attributes.
func (c *Channel) SetAttr(attr Attributes) {
	c.attr = attr
}

// Close shuts the underlying transport.
func (c *Channel) Close() error {
	return c.t.Close()
}

func (c *Channel) logf(format string, v ...interface{}) {
	c.logger.Printf(fmt.Sprintf("channel '%s': ", c.label)+format, v...)
}

// Send writes msg verbatim.
func (c *Channel) Send(msg string) error {
	return c.sendBytes([]byte(msg))
}

// SendLine writes msg followed by a line feed, unless auto-LF is
// suppressed for this channel.
func (c *Channel) SendLine(msg string) error {
	if c.attr.SuppressAutoLF {
		return c.Send(msg)
	}
	return c.Send(msg + "\n")
}

func (c *Channel) sendBytes(msg []byte) error {

	deadline := time.Now().Add(c.attr.SendTimeout)
	if err := c.t.SetDeadline(deadline); err != nil {
		return fmt.Errorf("send: could not set write deadline: %v", err)
	}

	if c.debug {
		c.logf("debug send: [%q]", msg)
	}

	_, wrErr := c.t.Write(msg)

	return wrErr
}

// ReadUntil reads channel output until one of the patterns matches the
// last output line, the overall match timeout elapses, or ctx is
// cancelled. It returns the index of the matched pattern and everything
// captured. A timeout error wraps ErrTimeout; a cancellation wraps
// ctx.Err(); anything else is a transport failure.
func (c *Channel) ReadUntil(ctx context.Context, patterns ...*regexp.Regexp) (int, []byte, error) {

	const badIndex = -1
	var matchBuf []byte

	begin := time.Now()
	lastData := begin
	buf := make([]byte, 100000)

READ_LOOP:
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return badIndex, matchBuf, fmt.Errorf("readUntil: aborted: %w", ctxErr)
		}

		now := time.Now()
		if now.Sub(begin) > c.attr.MatchTimeout {
			return badIndex, matchBuf, fmt.Errorf("readUntil: %w after %s", ErrTimeout, c.attr.MatchTimeout)
		}
		if now.Sub(lastData) > c.attr.ReadTimeout {
			return badIndex, matchBuf, fmt.Errorf("readUntil: read %w: no data for %s", ErrTimeout, c.attr.ReadTimeout)
		}

		// short read deadline: lets the loop notice cancellation
		deadline := now.Add(cancelPollInterval)
		if err := c.t.SetDeadline(deadline); err != nil {
			return badIndex, matchBuf, fmt.Errorf("readUntil: could not set read deadline: %v", err)
		}

		eof := false

		n, readErr := c.t.Read(buf)
		if readErr != nil {
			if te, ok := readErr.(hasTimeout); ok && te.Timeout() {
				continue READ_LOOP // deadline slice expired, retry
			}
			switch readErr {
			case io.EOF:
				if c.debug {
					c.logf("debug recv: EOF")
				}
				if c.t.EofIsError() {
					return badIndex, matchBuf, fmt.Errorf("readUntil: unexpected EOF: %w", io.EOF)
				}
				eof = true // EOF is normal termination for SSH transport
			case errTelnetNegOnly:
				if c.debug {
					c.logf("debug recv: telnet negotiation only")
				}
				continue READ_LOOP
			default:
				return badIndex, matchBuf, fmt.Errorf("readUntil: unexpected error: %v", readErr)
			}
		}
		if n < 1 && !eof {
			continue READ_LOOP
		}

		lastRead := buf[:n]

		if c.debug {
			c.logf("debug recv: [%q]", lastRead)
		}

		lastData = time.Now()

		matchBuf = append(matchBuf, lastRead...)
		matchBuf = removeControlChars(c.logger, c.debug, matchBuf, n)

		lastLine := findLastLine(matchBuf)

		for i, exp := range patterns {
			if exp.Match(lastLine) {
				return i, matchBuf, nil // pattern found
			}
		}

		if eof {
			return badIndex, matchBuf, io.EOF
		}
	}
}
