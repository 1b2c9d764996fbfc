package cli

import (
	"errors"
	"regexp"
	"testing"
)

func testModes(t *testing.T) *ModeSet {
	user := &CommandMode{Name: "user", Prompt: regexp.MustCompile(`\S+>\s*$`)}
	enable := &CommandMode{Name: "enable", Prompt: regexp.MustCompile(`\S+[^)#\s]#\s*$`), Enter: "enable", Exit: "disable"}
	config := &CommandMode{Name: "config", Prompt: regexp.MustCompile(`\(config[^)]*\)#\s*$`), Enter: "configure terminal", Exit: "exit"}
	s, err := NewModeSet(MatchLastLine, user, enable, config)
	if err != nil {
		t.Fatalf("testModes: %v", err)
	}
	return s
}

func TestTransitionCommand(t *testing.T) {
	s := testModes(t)

	user, _ := s.Get("user")
	enable, _ := s.Get("enable")
	config, _ := s.Get("config")

	if cmd, err := s.TransitionCommand(user, enable); err != nil || cmd != "enable" {
		t.Errorf("user=>enable: cmd=[%s] err=%v", cmd, err)
	}
	if cmd, err := s.TransitionCommand(enable, config); err != nil || cmd != "configure terminal" {
		t.Errorf("enable=>config: cmd=[%s] err=%v", cmd, err)
	}
	if cmd, err := s.TransitionCommand(config, enable); err != nil || cmd != "exit" {
		t.Errorf("config=>enable: cmd=[%s] err=%v", cmd, err)
	}
	if cmd, err := s.TransitionCommand(enable, user); err != nil || cmd != "disable" {
		t.Errorf("enable=>user: cmd=[%s] err=%v", cmd, err)
	}
}

func TestTransitionNotDefined(t *testing.T) {
	s := testModes(t)

	user, _ := s.Get("user")
	config, _ := s.Get("config")

	_, err := s.TransitionCommand(user, config)
	if err == nil {
		t.Fatalf("user=>config: expected error")
	}
	var noTrans *NoTransitionError
	if !errors.As(err, &noTrans) {
		t.Errorf("user=>config: wrong error type: %v", err)
	}
	if noTrans.From != "user" || noTrans.To != "config" {
		t.Errorf("user=>config: wrong error detail: %v", noTrans)
	}
}

func TestModeSetRejectsAmbiguousPrompts(t *testing.T) {
	a := &CommandMode{Name: "a", Prompt: regexp.MustCompile(`\S+#\s*$`)}
	b := &CommandMode{Name: "b", Prompt: regexp.MustCompile(`\S+#\s*$`)}
	if _, err := NewModeSet(MatchLastLine, a, b); err == nil {
		t.Errorf("expected rejection of duplicate prompt patterns")
	}
}

func TestMatchesIsPure(t *testing.T) {
	s := testModes(t)
	enable, _ := s.Get("enable")

	output := []byte("terminal length 0\r\nRP/0/RSP0/CPU0:asr9k#")

	first := s.Matches(output, enable)
	for i := 0; i < 10; i++ {
		if got := s.Matches(output, enable); got != first {
			t.Fatalf("Matches changed result on call %d: %v != %v", i, got, first)
		}
	}
	if !first {
		t.Errorf("expected enable prompt to match: [%s]", output)
	}
}

func TestMatchesLastLineOnly(t *testing.T) {
	s := testModes(t)
	enable, _ := s.Get("enable")
	config, _ := s.Get("config")

	// enable prompt buried mid-output followed by a config prompt
	output := []byte("RP/0/RSP0/CPU0:asr9k#\r\nRP/0/RSP0/CPU0:asr9k(config)#")

	if s.Matches(output, enable) {
		t.Errorf("enable prompt should not match: last line is config prompt")
	}
	if !s.Matches(output, config) {
		t.Errorf("config prompt should match last line")
	}
}

func TestMatchAnywherePolicy(t *testing.T) {
	user := &CommandMode{Name: "user", Prompt: regexp.MustCompile(`\S+>`)}
	s, err := NewModeSet(MatchAnywhere, user)
	if err != nil {
		t.Fatalf("NewModeSet: %v", err)
	}
	output := []byte("router>\nsome trailing banner text")
	if !s.Matches(output, user) {
		t.Errorf("anywhere policy should match prompt in earlier line")
	}
}
