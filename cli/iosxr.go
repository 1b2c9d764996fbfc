package cli

import (
	"regexp"
	"time"
)

// Profile bundles everything needed to automate one device family:
// its command mode chain, the login chat prompts, the bring-up step
// list and default channel pacing.
type Profile struct {
	Name    string
	Modes   *ModeSet
	Login   LoginChat
	BringUp []Step
	Attr    Attributes
}

// IOSXR returns the Cisco IOS-XR profile.
//
// Prompt shapes, e.g.:
//
//	RP/0/RSP0/CPU0:asr9k>           user mode
//	RP/0/RSP0/CPU0:asr9k#           enable mode
//	RP/0/RSP0/CPU0:asr9k(config)#   config mode
func IOSXR() *Profile {

	user := &CommandMode{
		Name:   "user",
		Prompt: regexp.MustCompile(`\S+>\s*$`),
	}
	enable := &CommandMode{
		Name:           "enable",
		Prompt:         regexp.MustCompile(`\S+[^)#\s]#\s*$`),
		Enter:          "enable",
		Exit:           "disable",
		PasswordPrompt: regexp.MustCompile(`Password:\s*$`),
	}
	config := &CommandMode{
		Name:   "config",
		Prompt: regexp.MustCompile(`\(config[^)]*\)#\s*$`),
		Enter:  "configure terminal",
		Exit:   "exit",
	}

	modes, err := NewModeSet(MatchLastLine, user, enable, config)
	if err != nil {
		panic("IOSXR profile: " + err.Error()) // static definition, must not fail
	}

	return &Profile{
		Name:  "cisco-iosxr",
		Modes: modes,
		Login: LoginChat{
			UsernamePrompt: regexp.MustCompile(`Username:\s*$`),
			PasswordPrompt: regexp.MustCompile(`Password:\s*$`),
		},
		// Session preparation: widen the terminal, silence console
		// logging (committed - IOS-XR stages config until commit),
		// and land in enable mode.
		BringUp: []Step{
			{Target: "enable"},
			{Command: "terminal length 0", Target: "enable"},
			{Command: "terminal width 300", Target: "enable"},
			{Target: "config"},
			{Command: "no logging console", Target: "config"},
			{Command: "commit", Target: "config"},
			{Command: "exit", Target: "enable"},
		},
		Attr: Attributes{
			ReadTimeout:  10 * time.Second,
			MatchTimeout: 20 * time.Second,
			SendTimeout:  5 * time.Second,
		},
	}
}
