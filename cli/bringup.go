package cli

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Step is one bring-up action: send a command, then block until the
// target mode's prompt confirms it. An empty Command means "derive the
// transition command from the mode model" - that path also handles an
// intermediate password prompt (enable secret).
type Step struct {
	Command string
	Target  string // name of the CommandMode expected after the step
}

// Sequencer states.
type seqState int

const (
	stateNotStarted seqState = iota
	stateRunning
	stateCompleted
	stateFailed
)

func (s seqState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "not-started"
}

// Sequencer drives a session through an ordered bring-up step list.
// Strictly sequential: no step starts before the previous step's prompt
// matched. All-or-nothing: the first failure aborts the sequence, side
// effects already applied on the device are not rolled back, and no
// retry happens here - retry policy belongs to the caller, on a fresh
// channel. A Sequencer runs once; replay needs a new one.
type Sequencer struct {
	steps  []Step
	logger hasPrintf
	state  seqState
	step   int
}

// NewSequencer builds a single-use sequencer for the given step list.
func NewSequencer(steps []Step, logger hasPrintf) *Sequencer {
	return &Sequencer{steps: steps, logger: logger}
}

// State reports the sequencer lifecycle state.
func (q *Sequencer) State() string {
	return q.state.String()
}

// StepIndex reports the index of the step last executed (or executing).
func (q *Sequencer) StepIndex() int {
	return q.step
}

// Run executes every step in order against the session. On success the
// session's current mode is the last step's target and the channel is
// idle; ownership of the ready channel returns to the caller.
func (q *Sequencer) Run(ctx context.Context, sess *Session) error {
	if q.state != stateNotStarted {
		return fmt.Errorf("sequencer: cannot run again from state '%s'", q.state)
	}
	q.state = stateRunning
	for i, st := range q.steps {
		q.step = i
		if err := q.runStep(ctx, sess, i, st); err != nil {
			q.state = stateFailed
			return err
		}
	}
	q.state = stateCompleted
	return nil
}

func (q *Sequencer) runStep(ctx context.Context, sess *Session, index int, st Step) error {

	target, getErr := sess.modes.Get(st.Target)
	if getErr != nil {
		return getErr
	}

	command := st.Command
	transition := false
	if command == "" && target != sess.current {
		var cmdErr error
		command, cmdErr = sess.modes.TransitionCommand(sess.current, target)
		if cmdErr != nil {
			return cmdErr // NoTransitionError: configuration bug, fail fast
		}
		transition = true
	}

	q.logger.Printf("bring-up: step %d/%d: sending [%s] expecting mode '%s'", index+1, len(q.steps), command, target.Name)

	if err := sess.ch.SendLine(command); err != nil {
		return q.stepError(index, command, target, nil, err)
	}

	patterns := []*regexp.Regexp{target.Prompt}
	if transition && target.PasswordPrompt != nil {
		patterns = append(patterns, target.PasswordPrompt)
	}

	m, buf, err := sess.ch.ReadUntil(ctx, patterns...)
	if err != nil {
		return q.stepError(index, command, target, buf, err)
	}

	if m == 1 {
		// device asked for the transition secret
		q.logger.Printf("bring-up: step %d: mode '%s' requires a password", index+1, target.Name)
		if passErr := sess.ch.SendLine(sess.enableSecret); passErr != nil {
			return q.stepError(index, command, target, buf, passErr)
		}
		if _, buf, err = sess.ch.ReadUntil(ctx, target.Prompt); err != nil {
			return q.stepError(index, command, target, buf, err)
		}
	}

	sess.current = target

	return nil
}

func (q *Sequencer) stepError(index int, command string, target *CommandMode, output []byte, err error) error {
	reason := ReasonChannel
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		reason = ReasonCancelled
	case errors.Is(err, ErrTimeout):
		reason = ReasonTimeout
	}
	e := &BringUpError{
		Step:    index,
		Command: command,
		Mode:    target.Name,
		Pattern: target.Prompt.String(),
		Output:  output,
		Reason:  reason,
		Err:     err,
	}
	q.logger.Printf("bring-up: %v", e)
	return e
}

// BringUp runs a fresh sequencer over the step list. This is the single
// entry point for preparing a session for automation.
func BringUp(ctx context.Context, sess *Session, steps []Step, logger hasPrintf) error {
	return NewSequencer(steps, logger).Run(ctx, sess)
}
