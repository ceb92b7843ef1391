package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatExceptions(t *testing.T) {
	rows := [][]string{
		{"timestamp", "batch_date", "rule_broken", "entity_id", "details", "severity"},
		{"2026-01-13T06:00:00Z", "2026-01-13", "IMPOSSIBLE_STOCK", "SKU-B", "Reserved 8 > Available 5", "HIGH"},
		{"2026-01-13T06:00:01Z", "2026-01-13", "MISSING_FILE", "MKT-002", "No sales submission received for 2026-01-13", "MEDIUM"},
	}

	var buf bytes.Buffer
	formatExceptions(&buf, rows)

	output := buf.String()
	assert.Contains(t, output, "IMPOSSIBLE_STOCK")
	assert.Contains(t, output, "SKU-B")
	assert.Contains(t, output, "MISSING_FILE")
	assert.Contains(t, output, "MKT-002")
	assert.Contains(t, output, "2 exceptions")
}
