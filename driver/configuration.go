package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/udhos/difflib"

	"github.com/mpenna/xrdrive/cli"
	"github.com/mpenna/xrdrive/store"
)

// ConfigurationRunning is the only configuration type an IOS-XR box
// exposes: the router has no separate startup configuration.
const ConfigurationRunning = "running"

// RestoreOverride replaces the whole running configuration;
// RestoreAppend merges the snapshot into it.
const (
	RestoreOverride = "override"
	RestoreAppend   = "append"
)

const showRunningConfig = "show running-config"

// commit replace asks for confirmation:
//
//	This commit will replace or remove the entire running configuration [...]
//	Do you wish to proceed? [no]:
var commitConfirmPrompt = regexp.MustCompile(`\[no\]:\s*$`)

// snapshotPrefix returns the versioned file prefix for one device and
// configuration type, e.g. <repo>/asr9k/asr9k.running.
func (d *Driver) snapshotPrefix(configType string) string {
	devDir := store.Join(d.repository, d.cfg.Id)
	return store.Join(devDir, d.cfg.Id+"."+configType+".")
}

// Save captures the device configuration and stores it as the next
// versioned snapshot, returning the snapshot path. An empty configType
// defaults to "running". Contents identical to the previous snapshot
// are not duplicated.
func (d *Driver) Save(ctx context.Context, configType string) (string, error) {

	if configType == "" {
		configType = ConfigurationRunning
	}
	if configType != ConfigurationRunning {
		return "", fmt.Errorf("Save: %s: unsupported configuration type '%s' (IOS-XR keeps only the running configuration)", d.cfg.Id, configType)
	}

	d.logger.Printf("Save: %s: configuration=%s", d.cfg.Id, configType)

	var captured []byte

	err := d.withSession(ctx, func(sess *cli.Session) error {
		var runErr error
		captured, runErr = d.runSlow(ctx, sess, showRunningConfig)
		return runErr
	})
	if err != nil {
		return "", fmt.Errorf("Save: %s: %w", d.cfg.Id, err)
	}

	contents := d.filter.apply(d.logger, d.cfg.Debug, stripCommandEcho(captured, showRunningConfig))

	prefix := d.snapshotPrefix(configType)

	devDir := store.Join(d.repository, d.cfg.Id)
	if mkErr := store.MkDir(devDir); mkErr != nil {
		return "", fmt.Errorf("Save: %s: repository dir: %v", d.cfg.Id, mkErr)
	}

	previous, prevErr := store.FindLastSnapshot(prefix, d.logger)

	opts := d.opt.Get()
	path, saveErr := store.SaveNewSnapshot(prefix, opts.MaxSnapshotFiles, d.logger, contents, true)
	if saveErr != nil {
		return "", fmt.Errorf("Save: %s: %v", d.cfg.Id, saveErr)
	}

	if prevErr == nil && previous != path {
		d.logDiff(previous, contents)
	}

	return path, nil
}

// logDiff reports the line changes between the previous snapshot and
// the just-captured configuration.
func (d *Driver) logDiff(previousPath string, contents []byte) {

	prev, readErr := store.FileRead(previousPath)
	if readErr != nil {
		d.logger.Printf("logDiff: could not read previous snapshot '%s': %v", previousPath, readErr)
		return
	}

	diff := difflib.Diff(splitLines(prev), splitLines(contents))

	var added, removed int
	for _, rec := range diff {
		switch rec.Delta {
		case difflib.LeftOnly:
			removed++
			d.logger.Printf("config diff: %s: - %s", d.cfg.Id, rec.Payload)
		case difflib.RightOnly:
			added++
			d.logger.Printf("config diff: %s: + %s", d.cfg.Id, rec.Payload)
		}
	}

	d.logger.Printf("config diff: %s: %d lines added, %d lines removed since [%s]", d.cfg.Id, added, removed, previousPath)
}

func splitLines(buf []byte) []string {
	return strings.Split(strings.TrimRight(string(buf), "\r\n"), "\n")
}

// stripCommandEcho removes the echoed command line and the trailing
// prompt line from captured output.
func stripCommandEcho(buf []byte, command string) []byte {
	lines := strings.SplitAfter(string(buf), "\n")
	var out []byte
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i == 0 && strings.Contains(trimmed, command) {
			continue // command echo
		}
		if i == len(lines)-1 && !strings.HasSuffix(line, "\n") {
			continue // prompt line
		}
		out = append(out, line...)
	}
	return out
}

// Restore loads a stored snapshot and replays it on the device in
// config mode. An empty configType defaults to "running"; an empty
// method defaults to "override". Override commits with
// "commit replace", wiping configuration absent from the snapshot;
// append merges with a plain "commit". Restore is serialized with the
// other state-reshaping operations.
func (d *Driver) Restore(ctx context.Context, path, configType, method string) error {

	if configType == "" {
		configType = ConfigurationRunning
	}
	if configType != ConfigurationRunning {
		return fmt.Errorf("Restore: %s: unsupported configuration type '%s'", d.cfg.Id, configType)
	}
	if method == "" {
		method = RestoreOverride
	}
	if method != RestoreOverride && method != RestoreAppend {
		return fmt.Errorf("Restore: %s: unsupported restore method '%s'", d.cfg.Id, method)
	}

	d.logger.Printf("Restore: %s: path=[%s] configuration=%s method=%s", d.cfg.Id, path, configType, method)

	contents, readErr := store.FileRead(path)
	if readErr != nil {
		return fmt.Errorf("Restore: %s: could not read snapshot '%s': %v", d.cfg.Id, path, readErr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.withSession(ctx, func(sess *cli.Session) error {

		if err := d.enterMode(ctx, sess, "config"); err != nil {
			return err
		}

		for _, line := range splitLines(contents) {
			line = strings.TrimRight(line, "\r")
			// skip comments and the trailing "end" marker: "end" would
			// leave config mode before the commit
			if line == "" || line == "end" || strings.HasPrefix(line, "!") {
				continue
			}
			if _, err := sess.Run(ctx, line); err != nil {
				return fmt.Errorf("replay [%s]: %w", line, err)
			}
		}

		// interface sections leave the dialog in a sub-mode; "root"
		// returns to the top config level before committing
		if _, err := sess.Run(ctx, "root"); err != nil {
			return fmt.Errorf("root: %w", err)
		}

		if err := d.commit(ctx, sess, method); err != nil {
			return err
		}

		return d.enterMode(ctx, sess, "enable")
	})
	if err != nil {
		return fmt.Errorf("Restore: %s: %w", d.cfg.Id, err)
	}

	return nil
}

// commit finishes a config-mode dialog. Override issues
// "commit replace" and answers its confirmation prompt.
func (d *Driver) commit(ctx context.Context, sess *cli.Session, method string) error {

	if method != RestoreOverride {
		_, err := sess.Run(ctx, "commit")
		return err
	}

	ch := sess.Channel()

	if err := ch.SendLine("commit replace"); err != nil {
		return fmt.Errorf("commit replace: %v", err)
	}

	configPrompt := sess.CurrentMode().Prompt

	m, _, err := ch.ReadUntil(ctx, commitConfirmPrompt, configPrompt)
	if err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	if m == 0 {
		if err := ch.SendLine("yes"); err != nil {
			return fmt.Errorf("commit replace: confirm: %v", err)
		}
		if _, _, err := ch.ReadUntil(ctx, configPrompt); err != nil {
			return fmt.Errorf("commit replace: confirm: %w", err)
		}
	}

	return nil
}
