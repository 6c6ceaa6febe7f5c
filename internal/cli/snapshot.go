package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridproof/gridproof/internal/adapter"
	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/snapshot"
	"github.com/gridproof/gridproof/internal/store"
)

// SnapshotOptions holds flags for the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	Cells string
	Out   string
	In    string
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and restore workbook cell state",
		Long: `Capture {value, formula} for a set of cells to a file, and replay a
captured file back into the workbook.

This is the same snapshot/restore machinery the test runner wraps
around every protected region, exposed for manual workbook protection.`,
	}

	cmd.AddCommand(newSnapshotCaptureCommand(rootOpts))
	cmd.AddCommand(newSnapshotRestoreCommand(rootOpts))
	return cmd
}

func newSnapshotCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "capture <workbook>",
		Short:         "Capture cell state to a snapshot file",
		Example:       `  gridproof snapshot capture model.db --cells "Assumptions!B2,Assumptions!B3" --out before.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return captureSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cells, "cells", "", "comma-separated cell addresses to capture (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "snapshot file to write (default stdout)")
	cmd.MarkFlagRequired("cells")

	return cmd
}

func newSnapshotRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "restore <workbook>",
		Short:         "Replay a snapshot file into the workbook",
		Example:       `  gridproof snapshot restore model.db --in before.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return restoreSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "snapshot file to replay (required)")
	cmd.MarkFlagRequired("in")

	return cmd
}

func captureSnapshot(opts *SnapshotOptions, workbook string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	addrs, err := parseCellList(opts.Cells)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse --cells", err)
	}

	wb, err := store.Open(workbook)
	if err != nil {
		return WrapExitError(ExitCommandError, "open workbook", err)
	}
	defer wb.Close()

	snaps := snapshot.New(adapter.New(wb))
	snap, err := snaps.Capture(cmd.Context(), addrs)
	if err != nil {
		return WrapExitError(ExitCommandError, "capture", err)
	}

	formatter.VerboseLog("captured %d cell(s) from %s", len(snap), workbook)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "encode snapshot", err)
	}
	data = append(data, '\n')

	if opts.Out == "" {
		_, err = formatter.Writer.Write(data)
	} else {
		err = os.WriteFile(opts.Out, data, 0o644)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "write snapshot", err)
	}
	return nil
}

func restoreSnapshot(opts *SnapshotOptions, workbook string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(opts.In)
	if err != nil {
		return WrapExitError(ExitCommandError, "read snapshot file", err)
	}
	var byAddr map[string]cell.State
	if err := json.Unmarshal(data, &byAddr); err != nil {
		return WrapExitError(ExitCommandError, "parse snapshot file", err)
	}
	snap := make(snapshot.Snapshot, len(byAddr))
	for key, st := range byAddr {
		addr, err := cell.ParseAddress(key)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse snapshot file", err)
		}
		snap[addr] = st
	}
	formatter.VerboseLog("replaying %d cell(s) into %s", len(snap), workbook)

	wb, err := store.Open(workbook)
	if err != nil {
		return WrapExitError(ExitCommandError, "open workbook", err)
	}
	defer wb.Close()

	snaps := snapshot.New(adapter.New(wb))
	report := snaps.Restore(cmd.Context(), snap)

	// The restore report is its own wire format, not wrapped in the
	// response envelope.
	if opts.Format == "json" {
		if err := formatter.JSON(report); err != nil {
			return WrapExitError(ExitCommandError, "encode report", err)
		}
	} else {
		fmt.Fprintln(formatter.Writer, report.String())
		for _, f := range report.Failures {
			fmt.Fprintf(formatter.Writer, "  ✗ %s: %s\n", f.Cell.String(), f.Message)
		}
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d cells failed to restore", len(report.Failures)))
	}
	return nil
}
