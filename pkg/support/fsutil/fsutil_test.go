// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	filePath := filepath.Join(dir, "schemas.yaml")
	exists, err = FileExists(filePath)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(filePath, []byte("schemas: []\n"), 0o644))
	exists, err = FileExists(filePath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReplaceTilde(t *testing.T) {
	for _, p := range []string{"", "/etc/schemas.yaml", "relative/~/x"} {
		got, err := ReplaceTilde(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	usr, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	got, err := ReplaceTilde("~/schemas.yaml")
	require.NoError(t, err)
	assert.Equal(t, path.Join(usr.HomeDir, "schemas.yaml"), got)

	_, err = ReplaceTilde("~no_such_user_for_pipegraph/schemas.yaml")
	require.Error(t, err)
}
