package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helvemed/meddiff/internal/runlog"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 1, 6, 10, 30, 0, 0, time.UTC)
	runs := []runlog.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Operation: "pricelist",
			OldLabel:  "20.11.2025",
			NewLabel:  "06.01.2026",
			Status:    runlog.StatusComplete,
			StartedAt: now,
			Result:    &runlog.Result{Changes: 42},
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Operation: "registration",
			OldLabel:  "20.11.2025",
			NewLabel:  "06.01.2026",
			Status:    runlog.StatusRunning,
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "OPERATION")
	assert.Contains(t, output, "pricelist")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "registration")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "abc12345")
}

func TestFormatRunsList_NoResult(t *testing.T) {
	runs := []runlog.Run{
		{
			ID:        "xyz",
			Operation: "merge",
			Status:    runlog.StatusFailed,
			StartedAt: time.Now(),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "-")
}
