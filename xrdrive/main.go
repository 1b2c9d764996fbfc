// xrdrive — Cisco IOS-XR CLI automation driver
//
// xrdrive opens a channel to an IOS-XR router, brings the session up
// into a known automation-ready state and runs one resource operation
// against it.
//
// Usage:
//
//	xrdrive save                      Snapshot the running configuration
//	xrdrive restore <snapshot>        Replay a stored snapshot
//	xrdrive run <command...>          Run a command in enable mode
//	xrdrive run-config <command...>   Run a command in config mode
//	xrdrive inventory                 Discover device structure
//	xrdrive health                    Device health check
//	xrdrive firmware <path> [pkgs]    Install firmware
//	xrdrive connectivity <request>    Apply a JSON connectivity request
//	xrdrive snapshots                 List stored snapshots
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/udhos/lockfile"

	"github.com/mpenna/xrdrive/conf"
	"github.com/mpenna/xrdrive/driver"
	"github.com/mpenna/xrdrive/store"
)

const appName = "xrdrive"
const appVersion = "0.1"

const maxConfigLoadSize = int64(10000000) // 10M

type app struct {
	configPath     string
	repositoryPath string
	logPathPrefix  string
	s3region       string
	deviceId       string
	verbose        bool
	opTimeout      time.Duration

	repositoryLock lockfile.Lockfile
	locked         bool

	options *conf.Options
	devices []conf.DevConfig

	logger *logrus.Logger
}

var xrd = newApp()

func newApp() *app {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &app{
		options: conf.NewOptions(),
		logger:  logger,
	}
}

func defaultHomeDir() string {
	home := os.Getenv("XRDRIVE_HOME")
	if home == "" {
		home = "/var/xrdrive"
	}
	return home
}

func defaultRegionName() string {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "sa-east-1"
	}
	return region
}

func addTrailingDot(path string) string {
	if path[len(path)-1] != '.' {
		return path + "."
	}
	return path
}

func main() {
	err := rootCmd.Execute()
	if xrd.locked {
		if unlockErr := xrd.repositoryLock.Unlock(); unlockErr != nil {
			xrd.logger.Printf("main: unlock: %v", unlockErr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Cisco IOS-XR CLI automation driver",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
}

func init() {
	defaultHome := defaultHomeDir()

	rootCmd.PersistentFlags().StringVarP(&xrd.configPath, "config", "c", filepath.Join(defaultHome, "etc", "xrdrive.conf"), "configuration file")
	rootCmd.PersistentFlags().StringVarP(&xrd.repositoryPath, "repository", "r", filepath.Join(defaultHome, "repo"), "snapshot repository: directory or arn:aws:s3:::bucket/folder")
	rootCmd.PersistentFlags().StringVar(&xrd.logPathPrefix, "log-prefix", filepath.Join(defaultHome, "log", "xrdrive.log"), "log file path prefix")
	rootCmd.PersistentFlags().StringVar(&xrd.s3region, "s3-region", defaultRegionName(), "AWS S3 region")
	rootCmd.PersistentFlags().StringVarP(&xrd.deviceId, "device", "d", "", "device id from the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&xrd.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().DurationVar(&xrd.opTimeout, "timeout", 10*time.Minute, "overall operation timeout")

	rootCmd.AddCommand(
		newSaveCmd(),
		newRestoreCmd(),
		newRunCmd(),
		newRunConfigCmd(),
		newInventoryCmd(),
		newHealthCmd(),
		newFirmwareCmd(),
		newConnectivityCmd(),
		newOrchestrationSaveCmd(),
		newOrchestrationRestoreCmd(),
		newSnapshotsCmd(),
		newVersionCmd(),
	)
}

func setup() error {

	if xrd.verbose {
		xrd.logger.SetLevel(logrus.DebugLevel)
	}

	xrd.logPathPrefix = addTrailingDot(xrd.logPathPrefix)

	if store.S3Path(xrd.logPathPrefix) {
		return fmt.Errorf("setup: logging to Amazon S3 is not supported: %s", xrd.logPathPrefix)
	}

	store.Init(xrd.logger, xrd.s3region)

	if !store.S3Path(xrd.repositoryPath) {
		if mkErr := store.MkDir(xrd.repositoryPath); mkErr != nil {
			return fmt.Errorf("setup: repository: %v", mkErr)
		}
		if lockErr := exclusiveLock(); lockErr != nil {
			return fmt.Errorf("setup: could not get exclusive lock: %v", lockErr)
		}
	}

	if mkErr := store.MkDir(filepath.Dir(xrd.logPathPrefix)); mkErr != nil {
		return fmt.Errorf("setup: log dir: %v", mkErr)
	}

	fileLogger := NewLogfile(xrd.logPathPrefix, 20, 10000000, time.Hour)
	xrd.logger.SetOutput(io.MultiWriter(os.Stdout, fileLogger))

	xrd.logger.Printf("%s %s starting", appName, appVersion)
	xrd.logger.Printf("config: %s", xrd.configPath)
	xrd.logger.Printf("repository: %s", xrd.repositoryPath)

	return loadConfig()
}

func exclusiveLock() error {
	lockPath := filepath.Join(xrd.repositoryPath, "lock")
	var newErr error
	if xrd.repositoryLock, newErr = lockfile.New(lockPath); newErr != nil {
		return fmt.Errorf("exclusiveLock: new failure: '%s': %v", lockPath, newErr)
	}
	if err := xrd.repositoryLock.TryLock(); err != nil {
		return fmt.Errorf("exclusiveLock: lock failure: '%s': %v", lockPath, err)
	}
	xrd.locked = true
	return nil
}

func loadConfig() error {

	config, loadErr := conf.Load(xrd.configPath, maxConfigLoadSize)
	if loadErr != nil {
		return fmt.Errorf("loadConfig: '%s': %v", xrd.configPath, loadErr)
	}

	xrd.options.Set(&config.Options)
	xrd.devices = config.Devices

	xrd.logger.Printf("loadConfig: %d devices", len(xrd.devices))

	return nil
}

// resolveDevice picks the target device: the -d flag when given, the
// single configured device otherwise.
func resolveDevice() (conf.DevConfig, error) {

	if xrd.deviceId == "" {
		if len(xrd.devices) == 1 {
			return xrd.devices[0], nil
		}
		return conf.DevConfig{}, fmt.Errorf("device required: use -d <id> (%d devices configured)", len(xrd.devices))
	}

	for _, cfg := range xrd.devices {
		if cfg.Id == xrd.deviceId {
			return cfg, nil
		}
	}

	return conf.DevConfig{}, fmt.Errorf("unknown device '%s'", xrd.deviceId)
}

func newDriver() (*driver.Driver, error) {
	cfg, err := resolveDevice()
	if err != nil {
		return nil, err
	}
	return driver.New(cfg, xrd.options, xrd.repositoryPath, xrd.logger), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, appVersion)
		},
	}
}
