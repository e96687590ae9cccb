// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package store

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Badger key layout. The separator '|' is reserved and rejected in paths so
// keys parse unambiguously.
//
//	n|<path>            node record (kind, schema, rows), JSON
//	m|<path>            metadata map, JSON
//	d|<path>|<start>    one appended block, <start> is the first row index
//	                    as 8 bytes big-endian so blocks sort by row order
const (
	prefixNode  = "n|"
	prefixMeta  = "m|"
	prefixBlock = "d|"

	keySep = byte('|')
)

// RootPath is the path of the root group, which always exists.
const RootPath = "/"

// CleanPath validates and canonicalizes a node path: it must be absolute,
// '/'-separated with non-empty segments, and free of the reserved '|'
// separator. A trailing slash is stripped; "/" names the root group.
func CleanPath(path string) (string, error) {
	if path == "" || path[0] != '/' {
		return "", fmt.Errorf("path %q: %w", path, ErrInvalidPath)
	}
	if strings.ContainsRune(path, rune(keySep)) {
		return "", fmt.Errorf("path %q: %w", path, ErrInvalidPath)
	}
	if path == RootPath {
		return RootPath, nil
	}
	path = strings.TrimSuffix(path, "/")
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" {
			return "", fmt.Errorf("path %q: %w", path, ErrInvalidPath)
		}
	}
	return path, nil
}

// parentPath returns the path of the enclosing group, or "/" for top-level
// nodes. The caller guarantees a cleaned, non-root path.
func parentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}

// baseName returns the last path segment.
func baseName(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

func nodeKey(path string) []byte {
	return []byte(prefixNode + path)
}

func metaKey(path string) []byte {
	return []byte(prefixMeta + path)
}

// blockKeyPrefix is the common prefix of every block key for one path,
// including the trailing separator before the start-row suffix.
func blockKeyPrefix(path string) []byte {
	p := make([]byte, 0, len(prefixBlock)+len(path)+1)
	p = append(p, prefixBlock...)
	p = append(p, path...)
	p = append(p, keySep)
	return p
}

func blockKey(path string, start int64) []byte {
	k := blockKeyPrefix(path)
	var suffix [8]byte
	binary.BigEndian.PutUint64(suffix[:], uint64(start))
	return append(k, suffix[:]...)
}

// blockStart extracts the start-row index from a block key given its prefix.
func blockStart(key, prefix []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(prefix):]))
}
