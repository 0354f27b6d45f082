// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for working with the file system.
package fsutil

import (
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to FileExists(%q)", path)
}

// ReplaceTilde replaces a leading "~" (or "~user") in filePath by the user's home directory.
// Returns filePath unchanged if it doesn't start with "~".
//
// It returns an error if filePath refers to an unknown user (e.g: `~unknown/schemas.yaml`).
func ReplaceTilde(filePath string) (string, error) {
	if len(filePath) == 0 || filePath[0] != '~' {
		return filePath, nil
	}
	var userName string
	if filePath != "~" && !strings.HasPrefix(filePath, "~/") {
		sepIdx := strings.IndexRune(filePath, '/')
		if sepIdx == -1 {
			userName = filePath[1:]
		} else {
			userName = filePath[1:sepIdx]
		}
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", filePath)
	}
	return path.Join(usr.HomeDir, filePath[1+len(userName):]), nil
}
