package main

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-session-sync/migrations"
)

type fakeMigrator struct {
	calls  []string
	upErr  error
	forced int
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return nil
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, nil))
	assert.Equal(t, []string{"up"}, m.calls)
}

func TestRunForce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"force", "1"}))
	assert.Equal(t, 1, m.forced)

	assert.Error(t, run(m, []string{"force"}))
	assert.Error(t, run(m, []string{"force", "x"}))
	assert.Error(t, run(m, []string{"sideways"}))
}

func TestEmbeddedSchemaCarriesConstraints(t *testing.T) {
	up, err := fs.ReadFile(migrations.FS, "0001_init.up.sql")
	require.NoError(t, err)
	schema := string(up)
	for _, name := range []string{
		"sessions_one_ongoing_per_doctor",
		"sessions_doctor_id_fkey",
		"bookings_session_patient_key",
		"bookings_session_position_key",
	} {
		assert.True(t, strings.Contains(schema, name), name)
	}

	_, err = fs.ReadFile(migrations.FS, "0001_init.down.sql")
	require.NoError(t, err)
}
