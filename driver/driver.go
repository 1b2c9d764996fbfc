// Package driver exposes the IOS-XR resource operations: inventory,
// custom commands, configuration save/restore, connectivity changes,
// firmware install and health check. Every operation opens a fresh
// channel, brings the session up and releases the channel when done.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpenna/xrdrive/cli"
	"github.com/mpenna/xrdrive/conf"
)

type hasPrintf interface {
	Printf(fmt string, v ...interface{})
}

// Driver runs operations against one managed IOS-XR device.
// Operations that reshape device state (Inventory, Restore,
// LoadFirmware) are serialized behind an internal lock; the
// remaining operations may run concurrently.
type Driver struct {
	cfg        conf.DevConfig
	opt        *conf.Options
	profile    *cli.Profile
	logger     hasPrintf
	repository string // snapshot repository: fs dir or arn:aws:s3: folder
	filter     *lineFilter
	mu         sync.Mutex
}

// New binds a driver to a device definition and snapshot repository.
func New(cfg conf.DevConfig, opt *conf.Options, repository string, logger hasPrintf) *Driver {
	return &Driver{
		cfg:        cfg,
		opt:        opt,
		profile:    cli.IOSXR(),
		logger:     logger,
		repository: repository,
		filter:     newLineFilter(),
	}
}

// DeviceId returns the device identifier.
func (d *Driver) DeviceId() string {
	return d.cfg.Id
}

func (d *Driver) openSession(ctx context.Context) (*cli.Session, error) {

	opts := d.opt.Get()

	attr := cli.Attributes{
		ReadTimeout:  opts.ReadTimeout,
		MatchTimeout: opts.MatchTimeout,
		SendTimeout:  opts.SendTimeout,
	}

	ch, transport, logged, dialErr := cli.Dial(d.logger, d.cfg.Id, d.cfg.HostPort, d.cfg.Transports, d.cfg.LoginUser, d.cfg.LoginPassword, attr, d.cfg.Debug)
	if dialErr != nil {
		return nil, fmt.Errorf("openSession: %s: %v", d.cfg.Id, dialErr)
	}

	d.logger.Printf("openSession: %s: transport=%s authenticated=%v", d.cfg.Id, transport, logged)

	sess := cli.NewSession(ch, d.profile.Modes, nil, d.logger)
	sess.SetEnableSecret(d.cfg.EnablePassword)

	if !logged {
		if _, err := sess.Login(ctx, d.profile.Login, d.cfg.LoginUser, d.cfg.LoginPassword); err != nil {
			sess.Close()
			return nil, fmt.Errorf("openSession: %s: %v", d.cfg.Id, err)
		}
	}

	if err := cli.BringUp(ctx, sess, d.profile.BringUp, d.logger); err != nil {
		sess.Close()
		return nil, fmt.Errorf("openSession: %s: bring-up: %w", d.cfg.Id, err)
	}

	return sess, nil
}

// withSession opens a ready session, runs f, then closes the channel.
func (d *Driver) withSession(ctx context.Context, f func(*cli.Session) error) error {
	sess, err := d.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	return f(sess)
}

// enterMode drives the session into the named command mode.
func (d *Driver) enterMode(ctx context.Context, sess *cli.Session, mode string) error {
	return cli.BringUp(ctx, sess, []cli.Step{{Target: mode}}, d.logger)
}

// runSlow issues a command under the larger command timeouts
// (full-config listings can be slow), restoring channel pacing after.
func (d *Driver) runSlow(ctx context.Context, sess *cli.Session, command string) ([]byte, error) {
	ch := sess.Channel()
	saved := ch.Attr()

	opts := d.opt.Get()
	attr := saved
	attr.ReadTimeout = opts.CommandReadTimeout
	attr.MatchTimeout = opts.CommandMatchTimeout
	ch.SetAttr(attr)
	defer ch.SetAttr(saved)

	return sess.Run(ctx, command)
}
