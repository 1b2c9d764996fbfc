package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpenna/xrdrive/cli"
)

// LoadFirmware installs a firmware package already reachable by the
// device (path is a device-visible source such as tftp:// or disk0:).
// It walks the IOS-XR install sequence: add, activate, commit.
// Serialized with the other state-reshaping operations.
func (d *Driver) LoadFirmware(ctx context.Context, path, packages string) error {

	if path == "" {
		return fmt.Errorf("LoadFirmware: %s: missing firmware path", d.cfg.Id)
	}

	path = applyVrf(path, d.cfg.VrfManagement)

	d.logger.Printf("LoadFirmware: %s: path=[%s] packages=[%s]", d.cfg.Id, path, packages)

	commands := []string{
		strings.TrimSpace("install add source " + path + " " + packages),
		strings.TrimSpace("install activate " + packages),
		"install commit",
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.withSession(ctx, func(sess *cli.Session) error {
		for _, command := range commands {
			out, runErr := d.runSlow(ctx, sess, command)
			if runErr != nil {
				return fmt.Errorf("[%s]: %w", command, runErr)
			}
			if failed := installError(out); failed != "" {
				return fmt.Errorf("[%s]: install failure: %s", command, failed)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("LoadFirmware: %s: %w", d.cfg.Id, err)
	}

	return nil
}

// applyVrf rewrites a network source URL to reach the server through
// the management VRF, using the IOS-XR "host;vrf" form:
// tftp://10.0.0.1/fw => tftp://10.0.0.1;mgmt/fw. Non-URL sources
// (disk0:, harddisk:) and hosts already carrying a VRF pass unchanged.
func applyVrf(path, vrf string) string {
	if vrf == "" {
		return path
	}
	scheme := strings.Index(path, "://")
	if scheme < 0 {
		return path
	}
	rest := path[scheme+3:]
	host := rest
	remainder := ""
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		host = rest[:slash]
		remainder = rest[slash:]
	}
	if strings.ContainsRune(host, ';') {
		return path
	}
	return path[:scheme+3] + host + ";" + vrf + remainder
}

// installError scans install command output for a failure report.
func installError(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			return trimmed
		}
	}
	return ""
}
