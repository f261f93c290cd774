package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3peakcity/f3-bot/internal/adapters/repository/sqlite"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
)

const venuesYAML = `venues:
  - label: the-forge
    identity: The Forge
    category: 1stf
    region: peak
    weekday: 1
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPipelineCommands(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "bb.db")
	venues := filepath.Join(dir, "venues.yaml")
	require.NoError(t, os.WriteFile(venues, []byte(venuesYAML), 0o600))

	t.Setenv("BACKBLAST_STORE_DRIVER", "sqlite")
	t.Setenv("BACKBLAST_STORE_DSN", dsn)
	t.Setenv("BACKBLAST_LOG_LEVEL", "error")

	out, err := execute(t, "init-db", "--venues", venues)
	require.NoError(t, err)
	assert.Equal(t, "loaded 1 venues\n", out)

	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), model.Submission{
		ID:            "bb-1",
		EventDate:     model.Date(2024, time.March, 5),
		VenueLabel:    "the-forge",
		OrganizerName: "Quill",
		OrganizerID:   "Q1",
		RecordedAt:    time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, "run", "--dry-run", "--table", "__PROCESSED_AO")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-04,Quill,The Forge,1,"), lines[1])

	// dry runs write nothing
	_, err = execute(t, "validate")
	require.Error(t, err)

	out, err = execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, `"person_rows": 1`)

	out, err = execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "__PROCESSED_PAX: 1 rows, 0 findings")
	assert.Contains(t, out, "__PROCESSED_AO: 1 rows, 0 findings")
}

func TestInitDBWithoutVenues(t *testing.T) {
	t.Setenv("BACKBLAST_STORE_DRIVER", "sqlite")
	t.Setenv("BACKBLAST_STORE_DSN", filepath.Join(t.TempDir(), "bb.db"))

	out, err := execute(t, "init-db")
	require.NoError(t, err)
	assert.Equal(t, "schema ready\n", out)
}
