package driver

import (
	"context"
	"fmt"

	"github.com/mpenna/xrdrive/cli"
)

// HealthCheck verifies the device answers its CLI: open a channel,
// bring the session up and run one trivial command round-trip.
func (d *Driver) HealthCheck(ctx context.Context) (string, error) {

	d.logger.Printf("HealthCheck: %s", d.cfg.Id)

	err := d.withSession(ctx, func(sess *cli.Session) error {
		_, runErr := sess.Run(ctx, "show clock")
		return runErr
	})
	if err != nil {
		d.logger.Printf("HealthCheck: %s: %v", d.cfg.Id, err)
		return fmt.Sprintf("Health check on resource '%s' failed", d.cfg.Id), err
	}

	return fmt.Sprintf("Health check on resource '%s' passed", d.cfg.Id), nil
}

// Shutdown powers the device off. IOS-XR routers offer no graceful
// CLI shutdown, so the operation is rejected.
func (d *Driver) Shutdown(ctx context.Context) error {
	return fmt.Errorf("Shutdown: %s: shutdown is not supported on this device", d.cfg.Id)
}
