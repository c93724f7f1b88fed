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
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/globals/services/globals/cache"
	badgerstore "github.com/AleutianAI/globals/services/globals/storage/badger"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the output cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached entries with their TTL and rewrite counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCacheList(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete every cached entry",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCachePurge(cmd, a)
			},
		},
	)
	return cmd
}

// errNoCacheDir is returned when the on-disk cache has never been written.
var errNoCacheDir = errors.New("cache directory does not exist")

// openCacheDir opens the configured on-disk cache, read-only if requested.
func (a *app) openCacheDir(readOnly bool) (*cache.BadgerTransformCacheStore, func(), error) {
	if a.cfg.Cache.InMemory {
		return nil, nil, errors.New("cache is configured in memory; nothing to inspect")
	}
	if _, err := os.Stat(a.cfg.Cache.Dir); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("%s: %w", a.cfg.Cache.Dir, errNoCacheDir)
	}
	cfg := badgerstore.DefaultConfig()
	cfg.Path = a.cfg.Cache.Dir
	cfg.ReadOnly = readOnly
	cfg.Logger = a.logger
	db, err := badgerstore.OpenDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewBadgerTransformCacheStore(db, a.cfg.Cache.TTL, a.logger), func() { _ = db.Close() }, nil
}

func runCacheList(cmd *cobra.Command, a *app) error {
	store, closeFn, err := a.openCacheDir(true)
	if errors.Is(err, errNoCacheDir) {
		fmt.Fprintln(a.stdout, "No cache directory yet. Run transform to populate it.")
		return nil
	}
	if err != nil {
		return err
	}
	defer closeFn()

	infos, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	printCacheList(a.stdout, a.cfg.Cache.Dir, infos, time.Now())
	return nil
}

func printCacheList(w io.Writer, dir string, infos []cache.EntryInfo, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Cache:"), dir)
	if len(infos) == 0 {
		fmt.Fprintln(w, "No cached entries.")
		return
	}
	fmt.Fprintf(w, "Found %d entr%s\n", len(infos), plural(len(infos), "y", "ies"))
	fmt.Fprintln(w, strings.Repeat("─", 72))

	var total int
	for _, info := range infos {
		total += info.Size
		key := info.Key
		if len(key) > 12 {
			key = key[:12]
		}
		if info.DecodeErr != nil {
			fmt.Fprintf(w, "%s  %s\n", key, errorStyle.Render("DECODE ERROR: "+info.DecodeErr.Error()))
			continue
		}
		state := dimStyle.Render("untouched")
		if info.Touched {
			state = touchedStyle.Render(fmt.Sprintf("%d rewrites", info.Stats.Total()))
		}
		fmt.Fprintf(w, "%s  %9s  %-14s  %s\n", key, formatBytes(info.Size), formatTTL(info.ExpiresAt, now), state)
	}
	fmt.Fprintln(w, strings.Repeat("─", 72))
	fmt.Fprintf(w, "Total: %s\n", formatBytes(total))
}

func runCachePurge(cmd *cobra.Command, a *app) error {
	store, closeFn, err := a.openCacheDir(false)
	if errors.Is(err, errNoCacheDir) {
		fmt.Fprintln(a.stdout, "Nothing to purge.")
		return nil
	}
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.Purge(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, touchedStyle.Render("Cache purged."))
	return nil
}

func formatTTL(expiresAt, now time.Time) string {
	if expiresAt.IsZero() {
		return "no expiry"
	}
	remaining := expiresAt.Sub(now)
	if remaining < 0 {
		return "expired"
	}
	return remaining.Round(time.Minute).String() + " left"
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
