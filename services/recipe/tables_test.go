// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedTables(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.NotEmpty(t, tables.NotificationMap)
	assert.NotEmpty(t, tables.CanonicalFilterNames)
	assert.NotEmpty(t, tables.FilterBlacklist)
	assert.Equal(t, "geografi", tables.CanonicalFilterNames["municipality"])
	assert.Equal(t, "branche", tables.CanonicalFilterNames["industry"])
}

func TestCanonicalName(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.Equal(t, "geografi", tables.CanonicalName("kommune"))
	assert.Equal(t, "geografi", tables.CanonicalName("Kommune"))
	assert.Equal(t, "geografi", tables.CanonicalName("geografi"))
	assert.Equal(t, "branche", tables.CanonicalName("industri"))
	assert.Equal(t, "webkilde", tables.CanonicalName("kilde"))
	assert.Equal(t, "problem", tables.CanonicalName("Problem"), "unknown names fold to lowercase only")
}

func TestBlacklisted(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.True(t, tables.Blacklisted("oprindelsesland"))
	assert.True(t, tables.Blacklisted("Oprindelsesland"))
	assert.True(t, tables.Blacklisted("sprog"))
	assert.False(t, tables.Blacklisted("geografi"))
}

func TestAllowsPeriode(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	for _, title := range []string{"Registrering", "Kapitalændring", "Tinglysning", "Status"} {
		assert.True(t, tables.AllowsPeriode(title), title)
	}
	assert.False(t, tables.AllowsPeriode("Arbejdstilsyn"))
}

func TestNormalizeNotificationTable(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.Equal(t, "instant", tables.NormalizeNotification("løbende"))
	assert.Equal(t, "weekly", tables.NormalizeNotification("interval"))
	assert.Equal(t, "daily", tables.NormalizeNotification(""))
	assert.Equal(t, "daily", tables.NormalizeNotification("whenever"))
}

func TestDefaultSourcesFor(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.Contains(t, tables.DefaultSourcesFor("Lokalpolitik"), "Aarhus")
	assert.Contains(t, tables.DefaultSourcesFor("lokalpolitik"), "Aarhus")
	assert.Contains(t, tables.DefaultSourcesFor("Danske medier"), "DR")
	assert.Nil(t, tables.DefaultSourcesFor("Tinglysning"))
}

func TestLoadTablesWithOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	override := `
filter_blacklist:
  - testfilter
filter_aliases:
  Omegn: geografi
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	tables, err := LoadTablesWithOverride(path)
	require.NoError(t, err)

	// Overridden tables replace the embedded ones wholesale.
	assert.True(t, tables.Blacklisted("testfilter"))
	assert.False(t, tables.Blacklisted("oprindelsesland"))
	assert.Equal(t, "geografi", tables.CanonicalName("omegn"))

	// Tables absent from the override keep their embedded values.
	assert.Equal(t, "instant", tables.NormalizeNotification("løbende"))
	assert.True(t, tables.AllowsPeriode("Tinglysning"))
}

func TestLoadTablesWithOverrideMissingFile(t *testing.T) {
	_, err := LoadTablesWithOverride(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadTablesWithEmptyPath(t *testing.T) {
	tables, err := LoadTablesWithOverride("")
	require.NoError(t, err)
	assert.True(t, tables.Blacklisted("oprindelsesland"))
}
