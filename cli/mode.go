package cli

import (
	"fmt"
	"regexp"
)

// MatchPolicy selects how a prompt pattern is applied to captured output.
type MatchPolicy int

const (
	// MatchLastLine applies the pattern to the last output line only.
	MatchLastLine MatchPolicy = iota
	// MatchAnywhere applies the pattern to the whole captured output.
	MatchAnywhere
)

// CommandMode is one named operating state of a device CLI, identified
// by a distinct prompt signature.
type CommandMode struct {
	Name           string
	Prompt         *regexp.Regexp // confirms the device is in this mode
	Enter          string         // command sent from the parent mode (empty for the initial mode)
	Exit           string         // command sent to return to the parent mode
	PasswordPrompt *regexp.Regexp // optional secret prompt during entry (enable password)
}

// ModeSet is a linear chain of command modes, parent first
// (e.g. user -> enable -> config). Built once per device family,
// never mutated at runtime. All lookups are pure.
type ModeSet struct {
	chain  []*CommandMode
	byName map[string]*CommandMode
	policy MatchPolicy
}

// NewModeSet builds and validates a mode chain. Sibling modes must carry
// distinct prompt patterns, otherwise step results could not be
// disambiguated and the set is rejected.
func NewModeSet(policy MatchPolicy, modes ...*CommandMode) (*ModeSet, error) {
	if len(modes) < 1 {
		return nil, fmt.Errorf("NewModeSet: empty mode chain")
	}
	s := &ModeSet{
		chain:  modes,
		byName: make(map[string]*CommandMode, len(modes)),
		policy: policy,
	}
	prompts := map[string]string{}
	for _, m := range modes {
		if m.Name == "" {
			return nil, fmt.Errorf("NewModeSet: mode with empty name")
		}
		if m.Prompt == nil {
			return nil, fmt.Errorf("NewModeSet: mode '%s': missing prompt pattern", m.Name)
		}
		if _, dup := s.byName[m.Name]; dup {
			return nil, fmt.Errorf("NewModeSet: duplicate mode name '%s'", m.Name)
		}
		if other, dup := prompts[m.Prompt.String()]; dup {
			return nil, fmt.Errorf("NewModeSet: modes '%s' and '%s' share prompt pattern [%s]", other, m.Name, m.Prompt)
		}
		s.byName[m.Name] = m
		prompts[m.Prompt.String()] = m.Name
	}
	return s, nil
}

// Get looks up a mode by name.
func (s *ModeSet) Get(name string) (*CommandMode, error) {
	m, found := s.byName[name]
	if !found {
		return nil, fmt.Errorf("ModeSet.Get: unknown command mode '%s'", name)
	}
	return m, nil
}

// Initial returns the first mode of the chain.
func (s *ModeSet) Initial() *CommandMode {
	return s.chain[0]
}

func (s *ModeSet) index(m *CommandMode) int {
	for i, c := range s.chain {
		if c == m {
			return i
		}
	}
	return -1
}

// TransitionCommand returns the command that moves the CLI between two
// adjacent modes. Non-adjacent pairs yield NoTransitionError.
func (s *ModeSet) TransitionCommand(from, to *CommandMode) (string, error) {
	i := s.index(from)
	j := s.index(to)
	if i < 0 || j < 0 {
		return "", &NoTransitionError{From: from.Name, To: to.Name}
	}
	switch j - i {
	case 1:
		return to.Enter, nil
	case -1:
		return from.Exit, nil
	}
	return "", &NoTransitionError{From: from.Name, To: to.Name}
}

// Matches reports whether the captured output confirms the given mode.
// Pure function: no state is read or written besides the arguments.
func (s *ModeSet) Matches(output []byte, m *CommandMode) bool {
	if s.policy == MatchAnywhere {
		return m.Prompt.Match(output)
	}
	return m.Prompt.Match(findLastLine(output))
}
