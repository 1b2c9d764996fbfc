package cli

import (
	"context"
	"fmt"
	"regexp"
)

// LoginChat holds the prompts for the username/password dialog required
// by transports that do not authenticate by themselves (telnet).
type LoginChat struct {
	UsernamePrompt *regexp.Regexp
	PasswordPrompt *regexp.Regexp
}

// Session owns one channel and tracks the command mode believed to be
// active on the device. One bring-up sequence at a time may run against
// it; there is no internal locking. Create one Session per channel.
type Session struct {
	ch           *Channel
	modes        *ModeSet
	current      *CommandMode
	enableSecret string
	logger       hasPrintf
}

// NewSession binds an open channel to a mode set. The session starts in
// the given mode (the chain's initial mode when nil).
func NewSession(ch *Channel, modes *ModeSet, initial *CommandMode, logger hasPrintf) *Session {
	if initial == nil {
		initial = modes.Initial()
	}
	return &Session{ch: ch, modes: modes, current: initial, logger: logger}
}

// CurrentMode returns the command mode believed to be active.
func (s *Session) CurrentMode() *CommandMode {
	return s.current
}

// Channel exposes the owned channel. Ownership stays with the session.
func (s *Session) Channel() *Channel {
	return s.ch
}

// SetEnableSecret provides the secret sent when a mode transition asks
// for a password (enable password).
func (s *Session) SetEnableSecret(secret string) {
	s.enableSecret = secret
}

// Close releases the channel.
func (s *Session) Close() error {
	return s.ch.Close()
}

// Run sends a command in the current mode and captures output until the
// current mode's prompt reappears. The session must be brought up first.
func (s *Session) Run(ctx context.Context, command string) ([]byte, error) {
	if command != "" {
		if err := s.ch.SendLine(command); err != nil {
			return nil, fmt.Errorf("run: could not send command '%s': %v", command, err)
		}
	}
	_, buf, err := s.ch.ReadUntil(ctx, s.current.Prompt)
	if err != nil {
		return buf, fmt.Errorf("run: could not match prompt of mode '%s' after '%s': %w", s.current.Name, command, err)
	}
	return buf, nil
}

// Login drives the username/password chat and detects which command
// mode the device lands in. It reports whether the session arrived
// directly in the second (privileged) mode of the chain.
func (s *Session) Login(ctx context.Context, chat LoginChat, user, pass string) (bool, error) {

	m1, _, err := s.ch.ReadUntil(ctx, chat.UsernamePrompt, chat.PasswordPrompt)
	if err != nil {
		return false, fmt.Errorf("login: could not find username prompt: %w", err)
	}

	switch m1 {
	case 0:
		s.logger.Printf("login: found username prompt")

		if userErr := s.ch.SendLine(user); userErr != nil {
			return false, fmt.Errorf("login: could not send username: %v", userErr)
		}

		if _, _, err := s.ch.ReadUntil(ctx, chat.PasswordPrompt); err != nil {
			return false, fmt.Errorf("login: could not find password prompt: %w", err)
		}

	case 1:
		s.logger.Printf("login: found password prompt")
	}

	if passErr := s.ch.SendLine(pass); passErr != nil {
		return false, fmt.Errorf("login: could not send password: %v", passErr)
	}

	initial := s.modes.Initial()
	if len(s.modes.chain) < 2 {
		if _, _, err := s.ch.ReadUntil(ctx, initial.Prompt); err != nil {
			return false, fmt.Errorf("login: could not find command prompt: %w", err)
		}
		s.current = initial
		return false, nil
	}

	privileged := s.modes.chain[1]

	m, _, err := s.ch.ReadUntil(ctx, initial.Prompt, privileged.Prompt)
	if err != nil {
		return false, fmt.Errorf("login: could not find command prompt: %w", err)
	}

	switch m {
	case 0:
		s.logger.Printf("login: found '%s' command prompt", initial.Name)
		s.current = initial
	case 1:
		s.logger.Printf("login: found '%s' command prompt", privileged.Name)
		s.current = privileged
	}

	return m == 1, nil
}
