// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig(t *testing.T) {
	p, err := NewWithConfig("memory")
	require.NoError(t, err)
	_, isRegistry := p.(*Registry)
	assert.True(t, isRegistry)

	_, err = NewWithConfig("postgres:localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")

	_, err = NewWithConfig("yaml:")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))
	p, err = NewWithConfig("yaml:" + path)
	require.NoError(t, err)
	_, err = p.Schema("Resize")
	require.NoError(t, err)
}

func TestNewProviderFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))
	t.Setenv(ConfigEnvVar, "yaml:"+path)
	p, err := NewProvider()
	require.NoError(t, err)
	_, err = p.Schema("Split")
	require.NoError(t, err)

	t.Setenv(ConfigEnvVar, "yaml:"+filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = NewProvider()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
