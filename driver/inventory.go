package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mpenna/xrdrive/cli"
)

// supportedOS guards inventory against a device that is not IOS-XR.
var supportedOS = regexp.MustCompile(`IOS[ -]?XR|IOSXR`)

var versionPattern = regexp.MustCompile(`Version\s*:?\s*([0-9][\w.\[\]]*)`)

// inventory listing, e.g.:
//
//	NAME: "module 0/RSP0/CPU0", DESCR: "ASR9K Route Switch Processor"
//	PID: A9K-RSP440-TR, VID: V05, SN: FOC1234ABCD
var inventoryNamePattern = regexp.MustCompile(`NAME:\s*"([^"]*)",\s*DESCR:\s*"([^"]*)"`)
var inventoryPidPattern = regexp.MustCompile(`PID:\s*(\S+?),\s*VID:\s*(\S+?),\s*SN:\s*(\S+)`)

// InventoryModule is one physical entity reported by the device.
type InventoryModule struct {
	Name   string
	Descr  string
	PID    string
	VID    string
	Serial string
}

// Inventory describes the discovered device.
type Inventory struct {
	Id      string
	System  string // first line of the version banner
	Version string
	Modules []InventoryModule
}

// GetInventory discovers the device structure over the CLI. It fails
// when the version banner does not identify an IOS-XR system.
// Serialized with the other state-reshaping operations.
func (d *Driver) GetInventory(ctx context.Context) (*Inventory, error) {

	d.logger.Printf("GetInventory: %s", d.cfg.Id)

	d.mu.Lock()
	defer d.mu.Unlock()

	inv := &Inventory{Id: d.cfg.Id}

	err := d.withSession(ctx, func(sess *cli.Session) error {

		version, verErr := d.runSlow(ctx, sess, "show version brief")
		if verErr != nil {
			return verErr
		}

		if !supportedOS.Match(version) {
			return fmt.Errorf("unsupported OS: version banner does not match %s", supportedOS)
		}

		parseVersion(inv, version)

		listing, invErr := d.runSlow(ctx, sess, "show inventory")
		if invErr != nil {
			return invErr
		}

		inv.Modules = parseInventory(listing)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("GetInventory: %s: %w", d.cfg.Id, err)
	}

	d.logger.Printf("GetInventory: %s: version=%s modules=%d", d.cfg.Id, inv.Version, len(inv.Modules))

	return inv, nil
}

func parseVersion(inv *Inventory, banner []byte) {
	for _, line := range strings.Split(string(banner), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if inv.System == "" && supportedOS.MatchString(line) {
			inv.System = line
		}
		if inv.Version == "" {
			if m := versionPattern.FindStringSubmatch(line); m != nil {
				inv.Version = m[1]
			}
		}
	}
}

func parseInventory(listing []byte) []InventoryModule {
	var modules []InventoryModule
	var current *InventoryModule

	for _, line := range strings.Split(string(listing), "\n") {
		if m := inventoryNamePattern.FindStringSubmatch(line); m != nil {
			modules = append(modules, InventoryModule{Name: m[1], Descr: m[2]})
			current = &modules[len(modules)-1]
			continue
		}
		if m := inventoryPidPattern.FindStringSubmatch(line); m != nil && current != nil {
			current.PID = m[1]
			current.VID = m[2]
			current.Serial = m[3]
			current = nil
		}
	}

	return modules
}
