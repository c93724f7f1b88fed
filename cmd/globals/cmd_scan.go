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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/globals/services/globals"
)

func newScanCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan PATH...",
		Short: "List module specifiers and whether each resolves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, a, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per file")
	return cmd
}

func runScan(cmd *cobra.Command, a *app, args []string, asJSON bool) error {
	ctx := cmd.Context()
	svcCfg, err := globals.ServiceConfigFromConfig(a.cfg)
	if err != nil {
		return err
	}
	svcCfg.Logger = a.logger
	svc := globals.NewService(svcCfg)

	var paths []string
	for _, root := range args {
		files, err := svc.CollectFiles(root)
		if err != nil {
			return err
		}
		paths = append(paths, files...)
	}

	enc := json.NewEncoder(a.stdout)
	var unresolved, failed int
	for _, path := range paths {
		code, err := os.ReadFile(path)
		if err != nil {
			failed++
			fmt.Fprintln(a.stderr, errorStyle.Render("error")+" "+err.Error())
			continue
		}
		res, err := svc.Scan(ctx, path, code, nil)
		if err != nil {
			failed++
			fmt.Fprintln(a.stderr, errorStyle.Render("error")+" "+err.Error())
			continue
		}
		for _, imp := range res.Imports {
			if !imp.Resolved {
				unresolved++
			}
		}

		if asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		printScan(a, res)
	}

	if !asJSON {
		fmt.Fprintln(a.stderr, dimStyle.Render(fmt.Sprintf("%d files, %d unresolved specifiers", len(paths), unresolved)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func printScan(a *app, res *globals.ScanResult) {
	if len(res.Imports) == 0 {
		return
	}
	fmt.Fprintln(a.stdout, titleStyle.Render(res.FilePath))
	for _, imp := range res.Imports {
		target := dimStyle.Render("unresolved")
		if imp.Resolved {
			target = touchedStyle.Render(imp.Global)
		}
		fmt.Fprintf(a.stdout, "  %4d  %-8s  %-30s  %s\n", imp.Location.StartLine, imp.Kind, imp.Path, target)
	}
}
