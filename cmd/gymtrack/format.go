// ABOUTME: Shared output helpers for the CLI.
// ABOUTME: Padding, short ids, weights, sync markers and exercise name lookup.
package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/harperreed/gymtracker/internal/storage"
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// pendingMark flags rows the server has not seen yet.
func pendingMark(s models.SyncStatus) string {
	if s == models.StatusPending {
		return color.YellowString(" •")
	}
	return ""
}

// exerciseNames maps exercise id to display name.
func exerciseNames(ctx context.Context) (map[string]string, error) {
	all, err := app.svc.Exercises(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, ex := range all {
		names[ex.ID] = ex.Name
	}
	return names, nil
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return shortID(id)
}

// lookupErr shortens a missing-reference error for display.
func lookupErr(kind, ref string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s not found: %s", kind, ref)
	}
	return err
}
