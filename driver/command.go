package driver

import (
	"context"
	"fmt"

	"github.com/mpenna/xrdrive/cli"
)

// RunCustomCommand executes one command in enable mode and returns the
// captured output.
func (d *Driver) RunCustomCommand(ctx context.Context, command string) (string, error) {

	d.logger.Printf("RunCustomCommand: %s: [%s]", d.cfg.Id, command)

	var out []byte

	err := d.withSession(ctx, func(sess *cli.Session) error {
		var runErr error
		out, runErr = d.runSlow(ctx, sess, command)
		return runErr
	})
	if err != nil {
		return string(out), fmt.Errorf("RunCustomCommand: %s: %w", d.cfg.Id, err)
	}

	return string(out), nil
}

// RunCustomConfigCommand executes one command in config mode, commits
// and returns the captured output.
func (d *Driver) RunCustomConfigCommand(ctx context.Context, command string) (string, error) {

	d.logger.Printf("RunCustomConfigCommand: %s: [%s]", d.cfg.Id, command)

	var out []byte

	err := d.withSession(ctx, func(sess *cli.Session) error {

		if err := d.enterMode(ctx, sess, "config"); err != nil {
			return err
		}

		var runErr error
		out, runErr = d.runSlow(ctx, sess, command)
		if runErr != nil {
			return runErr
		}

		if _, err := sess.Run(ctx, "commit"); err != nil {
			return err
		}

		return d.enterMode(ctx, sess, "enable")
	})
	if err != nil {
		return string(out), fmt.Errorf("RunCustomConfigCommand: %s: %w", d.cfg.Id, err)
	}

	return string(out), nil
}
