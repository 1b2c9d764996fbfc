package cli

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// testLogger: wrap Printf interface around *testing.T
type testLogger struct {
	*testing.T
}

func (t *testLogger) Printf(format string, v ...interface{}) {
	t.Logf("client: "+format, v...)
}

func testAttr() Attributes {
	return Attributes{
		ReadTimeout:  2 * time.Second,
		MatchTimeout: 3 * time.Second,
		SendTimeout:  2 * time.Second,
	}
}

const bogusPromptBase = "RP/0/RSP0/CPU0:asr9k"

type bogusOptions struct {
	requireEnablePass bool
	silentAfter       int // stop answering after this many answered commands (<0: never)
	breakAfter        int // close the connection after this many answered commands (<0: never)
}

// bogusXR emulates enough of an IOS-XR terminal for bring-up testing.
// It runs against one end of a net.Pipe and records every command line
// it receives.
type bogusXR struct {
	conn     net.Conn
	opts     bogusOptions
	mu       sync.Mutex
	received []string
	done     chan struct{}
}

func spawnBogusXR(t *testing.T, conn net.Conn, opts bogusOptions) *bogusXR {
	b := &bogusXR{conn: conn, opts: opts, done: make(chan struct{})}
	go b.serve(t)
	return b
}

func (b *bogusXR) commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.received))
	copy(out, b.received)
	return out
}

func (b *bogusXR) record(cmd string) {
	b.mu.Lock()
	b.received = append(b.received, cmd)
	b.mu.Unlock()
}

func (b *bogusXR) serve(t *testing.T) {
	defer close(b.done)
	defer b.conn.Close()

	enabled := false
	config := false
	answered := 0

	prompt := func() string {
		switch {
		case config:
			return "\r\n" + bogusPromptBase + "(config)#"
		case enabled:
			return "\r\n" + bogusPromptBase + "#"
		}
		return "\r\n" + bogusPromptBase + ">"
	}

	reader := bufio.NewReader(b.conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return // peer closed
		}
		cmd := strings.TrimSpace(line)
		b.record(cmd)

		if b.opts.silentAfter >= 0 && answered >= b.opts.silentAfter {
			continue // swallow commands, never answer
		}
		if b.opts.breakAfter >= 0 && answered >= b.opts.breakAfter {
			return
		}

		switch {
		case cmd == "enable":
			if b.opts.requireEnablePass && !enabled {
				if _, err := b.conn.Write([]byte("\r\nPassword: ")); err != nil {
					return
				}
				if _, err := reader.ReadString('\n'); err != nil {
					return
				}
			}
			enabled = true
		case cmd == "configure terminal":
			config = true
		case cmd == "exit":
			if config {
				config = false
			}
		case strings.HasPrefix(cmd, "show"):
			if _, err := b.conn.Write([]byte("\r\nthis is the IOS XR config")); err != nil {
				return
			}
		}

		if _, err := b.conn.Write([]byte(prompt())); err != nil {
			return
		}
		answered++
	}
}

// newTestSession wires a session to a bogus device over an in-memory pipe.
func newTestSession(t *testing.T, opts bogusOptions) (*Session, *bogusXR) {
	client, server := net.Pipe()

	bogus := spawnBogusXR(t, server, opts)

	logger := &testLogger{t}
	ch := NewChannel(&transpPipe{client}, testAttr(), logger, "bogus", false)

	profile := IOSXR()
	sess := NewSession(ch, profile.Modes, nil, logger)
	sess.SetEnableSecret("en-secret")

	return sess, bogus
}

func TestBringUpHappyPath(t *testing.T) {
	sess, bogus := newTestSession(t, bogusOptions{silentAfter: -1, breakAfter: -1})
	defer sess.Close()

	profile := IOSXR()

	if err := BringUp(context.Background(), sess, profile.BringUp, &testLogger{t}); err != nil {
		t.Fatalf("bring-up failed: %v", err)
	}

	if mode := sess.CurrentMode().Name; mode != "enable" {
		t.Errorf("final mode: got '%s' wanted 'enable'", mode)
	}

	wanted := []string{
		"enable",
		"terminal length 0",
		"terminal width 300",
		"configure terminal",
		"no logging console",
		"commit",
		"exit",
	}
	got := bogus.commands()
	if len(got) != len(wanted) {
		t.Fatalf("commands: got %d wanted %d: %v", len(got), len(wanted), got)
	}
	for i, w := range wanted {
		if got[i] != w {
			t.Errorf("command %d: got [%s] wanted [%s]", i, got[i], w)
		}
	}
}

func TestBringUpEnablePassword(t *testing.T) {
	sess, _ := newTestSession(t, bogusOptions{requireEnablePass: true, silentAfter: -1, breakAfter: -1})
	defer sess.Close()

	profile := IOSXR()

	if err := BringUp(context.Background(), sess, profile.BringUp, &testLogger{t}); err != nil {
		t.Fatalf("bring-up failed: %v", err)
	}

	if mode := sess.CurrentMode().Name; mode != "enable" {
		t.Errorf("final mode: got '%s' wanted 'enable'", mode)
	}
}

func TestBringUpTimeoutOnThirdStep(t *testing.T) {
	// device answers 2 commands then goes silent
	sess, bogus := newTestSession(t, bogusOptions{silentAfter: 2, breakAfter: -1})
	defer sess.Close()

	// shorter timeouts: this test must wait one out
	attr := sess.Channel().Attr()
	attr.ReadTimeout = 500 * time.Millisecond
	attr.MatchTimeout = time.Second
	sess.Channel().SetAttr(attr)

	profile := IOSXR()

	err := BringUp(context.Background(), sess, profile.BringUp, &testLogger{t})
	if err == nil {
		t.Fatalf("expected bring-up failure")
	}

	var bringErr *BringUpError
	if !errors.As(err, &bringErr) {
		t.Fatalf("wrong error type: %v", err)
	}
	if bringErr.Step != 2 {
		t.Errorf("step index: got %d wanted 2", bringErr.Step)
	}
	if bringErr.Reason != ReasonTimeout {
		t.Errorf("reason: got %s wanted timeout", bringErr.Reason)
	}
	if !bringErr.Timeout() {
		t.Errorf("Timeout() should report true")
	}

	// mode must remain the mode in effect after step 1
	if mode := sess.CurrentMode().Name; mode != "enable" {
		t.Errorf("mode after timeout: got '%s' wanted 'enable'", mode)
	}

	// exactly 2 commands completed before the failing step
	got := bogus.commands()
	if len(got) != 3 { // steps 0,1 answered + step 2 sent but unanswered
		t.Errorf("commands seen by device: got %d wanted 3: %v", len(got), got)
	}
}

func TestBringUpCancelledMidSequence(t *testing.T) {
	// device answers 1 command then goes silent; caller cancels
	sess, _ := newTestSession(t, bogusOptions{silentAfter: 1, breakAfter: -1})
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	profile := IOSXR()

	err := BringUp(ctx, sess, profile.BringUp, &testLogger{t})
	if err == nil {
		t.Fatalf("expected bring-up failure")
	}

	var bringErr *BringUpError
	if !errors.As(err, &bringErr) {
		t.Fatalf("wrong error type: %v", err)
	}
	if bringErr.Step != 1 {
		t.Errorf("step index: got %d wanted 1", bringErr.Step)
	}
	if bringErr.Reason != ReasonCancelled {
		t.Errorf("reason: got %s wanted cancelled", bringErr.Reason)
	}
	if bringErr.Reason == ReasonTimeout {
		t.Errorf("cancellation must be distinguishable from timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
}

func TestBringUpChannelBreak(t *testing.T) {
	// device closes the connection after answering 1 command
	sess, _ := newTestSession(t, bogusOptions{silentAfter: -1, breakAfter: 1})
	defer sess.Close()

	profile := IOSXR()

	err := BringUp(context.Background(), sess, profile.BringUp, &testLogger{t})
	if err == nil {
		t.Fatalf("expected bring-up failure")
	}

	var bringErr *BringUpError
	if !errors.As(err, &bringErr) {
		t.Fatalf("wrong error type: %v", err)
	}
	if bringErr.Reason != ReasonChannel {
		t.Errorf("reason: got %s wanted channel", bringErr.Reason)
	}
}

func TestBringUpDeterminism(t *testing.T) {
	run := func() (string, int, string) {
		sess, _ := newTestSession(t, bogusOptions{silentAfter: 2, breakAfter: -1})
		defer sess.Close()

		attr := sess.Channel().Attr()
		attr.ReadTimeout = 500 * time.Millisecond
		attr.MatchTimeout = time.Second
		sess.Channel().SetAttr(attr)

		q := NewSequencer(IOSXR().BringUp, &testLogger{t})
		err := q.Run(context.Background(), sess)
		step := -1
		var bringErr *BringUpError
		if errors.As(err, &bringErr) {
			step = bringErr.Step
		}
		return q.State(), step, sess.CurrentMode().Name
	}

	state1, step1, mode1 := run()
	state2, step2, mode2 := run()

	if state1 != state2 || step1 != step2 || mode1 != mode2 {
		t.Errorf("non-deterministic outcome: (%s,%d,%s) != (%s,%d,%s)",
			state1, step1, mode1, state2, step2, mode2)
	}
	if state1 != "failed" || step1 != 2 {
		t.Errorf("expected failed at step 2: state=%s step=%d", state1, step1)
	}
}

func TestSequencerSingleUse(t *testing.T) {
	sess, _ := newTestSession(t, bogusOptions{silentAfter: -1, breakAfter: -1})
	defer sess.Close()

	q := NewSequencer(IOSXR().BringUp, &testLogger{t})
	if err := q.Run(context.Background(), sess); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if q.State() != "completed" {
		t.Errorf("state: got %s wanted completed", q.State())
	}
	if err := q.Run(context.Background(), sess); err == nil {
		t.Errorf("second run should be refused")
	}
}

func TestBringUpNoTransition(t *testing.T) {
	sess, _ := newTestSession(t, bogusOptions{silentAfter: -1, breakAfter: -1})
	defer sess.Close()

	// jump user=>config is not adjacent
	steps := []Step{{Target: "config"}}

	err := BringUp(context.Background(), sess, steps, &testLogger{t})
	if err == nil {
		t.Fatalf("expected no-transition failure")
	}
	var noTrans *NoTransitionError
	if !errors.As(err, &noTrans) {
		t.Errorf("wrong error type: %v", err)
	}
}

func TestSessionRunAfterBringUp(t *testing.T) {
	sess, _ := newTestSession(t, bogusOptions{silentAfter: -1, breakAfter: -1})
	defer sess.Close()

	profile := IOSXR()

	if err := BringUp(context.Background(), sess, profile.BringUp, &testLogger{t}); err != nil {
		t.Fatalf("bring-up failed: %v", err)
	}

	out, err := sess.Run(context.Background(), "show running-config")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(string(out), "this is the IOS XR config") {
		t.Errorf("missing config in output: [%s]", out)
	}
}
