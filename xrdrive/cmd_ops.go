package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpenna/xrdrive/store"
)

func opContext() (context.Context, context.CancelFunc) {
	if xrd.opTimeout > 0 {
		return context.WithTimeout(context.Background(), xrd.opTimeout)
	}
	return context.WithCancel(context.Background())
}

func newSaveCmd() *cobra.Command {
	var configType string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Snapshot the running configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			path, saveErr := d.Save(ctx, configType)
			if saveErr != nil {
				return saveErr
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&configType, "type", "running", "configuration type")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var configType string
	var method string
	cmd := &cobra.Command{
		Use:   "restore <snapshot-path>",
		Short: "Replay a stored snapshot on the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			return d.Restore(ctx, args[0], configType, method)
		},
	}
	cmd.Flags().StringVar(&configType, "type", "running", "configuration type")
	cmd.Flags().StringVar(&method, "method", "override", "restore method: override or append")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command...>",
		Short: "Run a command in enable mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			out, runErr := d.RunCustomCommand(ctx, strings.Join(args, " "))
			if runErr != nil {
				return runErr
			}
			fmt.Println(out)
			return nil
		},
	}
}

func newRunConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-config <command...>",
		Short: "Run a command in config mode and commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			out, runErr := d.RunCustomConfigCommand(ctx, strings.Join(args, " "))
			if runErr != nil {
				return runErr
			}
			fmt.Println(out)
			return nil
		},
	}
}

func newInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Discover device structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			inv, invErr := d.GetInventory(ctx)
			if invErr != nil {
				return invErr
			}
			fmt.Printf("device:  %s\n", inv.Id)
			fmt.Printf("system:  %s\n", inv.System)
			fmt.Printf("version: %s\n", inv.Version)
			for _, m := range inv.Modules {
				fmt.Printf("module:  %-30s pid=%s vid=%s sn=%s\n", m.Name, m.PID, m.VID, m.Serial)
			}
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Device health check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			report, healthErr := d.HealthCheck(ctx)
			fmt.Println(report)
			return healthErr
		},
	}
}

func newFirmwareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "firmware <path> [packages]",
		Short: "Install firmware from a device-visible source",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			packages := ""
			if len(args) > 1 {
				packages = args[1]
			}
			ctx, cancel := opContext()
			defer cancel()
			return d.LoadFirmware(ctx, args[0], packages)
		},
	}
}

func newConnectivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connectivity <request-file>",
		Short: "Apply a JSON connectivity request ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, readErr := readFileOrStdin(args[0])
			if readErr != nil {
				return readErr
			}
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			response, applyErr := d.ApplyConnectivityChanges(ctx, request)
			if applyErr != nil {
				return applyErr
			}
			fmt.Println(response)
			return nil
		},
	}
}

func newOrchestrationSaveCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "orchestration-save",
		Short: "Snapshot and print the JSON artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			artifact, saveErr := d.OrchestrationSave(ctx, mode)
			if saveErr != nil {
				return saveErr
			}
			fmt.Println(artifact)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "shallow", "save mode")
	return cmd
}

func newOrchestrationRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orchestration-restore <artifact-file>",
		Short: "Restore from a JSON artifact ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, readErr := readFileOrStdin(args[0])
			if readErr != nil {
				return readErr
			}
			d, err := newDriver()
			if err != nil {
				return err
			}
			ctx, cancel := opContext()
			defer cancel()
			return d.OrchestrationRestore(ctx, artifact)
		},
	}
}

func newSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots for the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveDevice()
			if err != nil {
				return err
			}

			prefix := store.Join(store.Join(xrd.repositoryPath, cfg.Id), cfg.Id+".")

			dirname, matches, listErr := store.ListSnapshotsSorted(prefix, true, xrd.logger)
			if listErr != nil {
				return listErr
			}

			for _, m := range matches {
				path := store.Join(dirname, m)
				modTime, size, infoErr := store.FileInfo(path)
				if infoErr != nil {
					fmt.Printf("%s\n", path)
					continue
				}
				fmt.Printf("%s  %8d  %s\n", modTime.Format(time.RFC3339), size, path)
			}
			return nil
		},
	}
}

func readFileOrStdin(path string) (string, error) {
	if path == "-" {
		buf, err := io.ReadAll(os.Stdin)
		return string(buf), err
	}
	buf, err := os.ReadFile(path)
	return string(buf), err
}
