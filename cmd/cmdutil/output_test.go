package cmdutil

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/internal/models"
	"firesync/internal/service/orchestrator"
)

func TestRender(t *testing.T) {
	data := map[string]any{"slug": "genre", "count": 3}

	tests := []struct {
		name     string
		format   string
		contains []string
		wantErr  bool
	}{
		{name: "json", format: FormatJSON, contains: []string{`"slug": "genre"`, `"count": 3`}},
		{name: "yaml", format: FormatYAML, contains: []string{"slug: genre", "count: 3"}},
		{name: "table", format: FormatTable, contains: []string{"SLUG", "genre"}},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Render(&buf, tt.format, data, func(w io.Writer) {
				table := NewTable(w, "Slug", "Count")
				table.Append([]string{"genre", "3"})
				table.Render()
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	t.Run("success prints a confirmation", func(t *testing.T) {
		var buf bytes.Buffer
		err := PrintResult(&buf, "sync all", &orchestrator.SyncResult{RunID: "run-1", Success: true, Total: 2, Succeeded: 2})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "sync all completed successfully")
		assert.Contains(t, buf.String(), "run-1")
	})

	t.Run("no-op prints the reason", func(t *testing.T) {
		var buf bytes.Buffer
		err := PrintResult(&buf, "sync taxonomy", &orchestrator.SyncResult{Success: true, Reason: "taxonomy genre is not configured for sync"})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "is not configured for sync")
	})

	t.Run("failure returns the reason", func(t *testing.T) {
		var buf bytes.Buffer
		err := PrintResult(&buf, "sync all", &orchestrator.SyncResult{
			Success: false,
			Failed:  1,
			Reason:  "post_types/book/posts/20: unreachable",
			Pruned:  []models.PrunedTarget{{Kind: models.TargetContentType, Slug: "movie"}},
		})
		require.Error(t, err)
		assert.Equal(t, "sync all failed: post_types/book/posts/20: unreachable", err.Error())
		assert.Contains(t, buf.String(), "Removed content_type target movie")
	})
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("table"))
	assert.NoError(t, ValidateFormat("json"))
	assert.NoError(t, ValidateFormat("yaml"))
	assert.Error(t, ValidateFormat("csv"))
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", Dash(""))
	assert.Equal(t, "x", Dash("x"))
}
