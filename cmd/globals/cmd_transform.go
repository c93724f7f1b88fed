// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/globals/services/globals"
)

// stdinPath selects standard input as the module to transform.
const stdinPath = "-"

type transformOptions struct {
	write bool
	diff  bool
	quiet bool
}

func newTransformCmd(a *app) *cobra.Command {
	opts := &transformOptions{}
	cmd := &cobra.Command{
		Use:   "transform PATH...",
		Short: "Rewrite imports of mapped modules",
		Long: `Rewrites every file under PATH that passes the include/exclude filter.

By default the rendered code is printed to stdout. --write rewrites touched
files in place and --diff prints a unified diff instead. Use "-" to read a
single module from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.write && opts.diff {
				return errors.New("--write and --diff are mutually exclusive")
			}
			return runTransform(cmd, a, opts, args)
		},
	}
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "Write touched files in place")
	cmd.Flags().BoolVarP(&opts.diff, "diff", "d", false, "Print a unified diff")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress the summary")
	return cmd
}

func runTransform(cmd *cobra.Command, a *app, opts *transformOptions, args []string) error {
	ctx := cmd.Context()
	svc, closeFn, err := a.newService()
	if err != nil {
		return err
	}
	defer closeFn()

	if len(args) == 1 && args[0] == stdinPath {
		code, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		res, err := svc.Transform(ctx, "<stdin>", code)
		if err != nil {
			return err
		}
		return emitResult(a.stdout, opts, string(code), res, false)
	}

	var paths []string
	for _, root := range args {
		files, err := svc.CollectFiles(root)
		if err != nil {
			return err
		}
		paths = append(paths, files...)
	}

	results := svc.TransformFiles(ctx, paths)

	var sum summary
	multi := len(results) > 1
	for _, r := range results {
		sum.files++
		if r.Err != nil {
			sum.failed++
			fmt.Fprintln(a.stderr, errorStyle.Render("error")+" "+r.Err.Error())
			continue
		}
		if r.Result.Touched {
			sum.touched++
		}
		if r.Result.Cached {
			sum.cached++
		}
		sum.rewrites += r.Result.Stats.Total()

		if opts.write {
			if !r.Result.Touched {
				continue
			}
			if err := writeInPlace(r.Path, r.Result.Code); err != nil {
				sum.failed++
				fmt.Fprintln(a.stderr, errorStyle.Render("error")+" "+err.Error())
				continue
			}
			a.logger.Debug("wrote file", slog.String("file", r.Path))
			continue
		}

		original, err := os.ReadFile(r.Path)
		if err != nil {
			sum.failed++
			fmt.Fprintln(a.stderr, errorStyle.Render("error")+" "+err.Error())
			continue
		}
		if err := emitResult(a.stdout, opts, string(original), r.Result, multi); err != nil {
			return err
		}
	}

	if !opts.quiet {
		fmt.Fprintln(a.stderr, sum.render())
	}
	if sum.failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.failed, sum.files)
	}
	return nil
}

// emitResult prints one result as code or as a diff.
func emitResult(w io.Writer, opts *transformOptions, original string, res *globals.Result, header bool) error {
	if opts.diff {
		d, err := globals.BuildUnifiedDiff(res.FilePath, original, res.Code)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, d)
		return err
	}
	if header {
		fmt.Fprintf(w, "// ==> %s <==\n", res.FilePath)
	}
	_, err := io.WriteString(w, res.Code)
	return err
}

// writeInPlace replaces path's content, keeping its permissions.
func writeInPlace(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type summary struct {
	files, touched, cached, failed, rewrites int
}

func (s summary) render() string {
	out := titleStyle.Render(fmt.Sprintf("%d files", s.files)) + "  " +
		touchedStyle.Render(fmt.Sprintf("%d touched", s.touched)) + "  " +
		cachedStyle.Render(fmt.Sprintf("%d cached", s.cached)) + "  " +
		dimStyle.Render(fmt.Sprintf("%d rewrites", s.rewrites))
	if s.failed > 0 {
		out += "  " + errorStyle.Render(fmt.Sprintf("%d failed", s.failed))
	}
	return out
}
