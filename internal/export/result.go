// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package export

import (
	"strings"
	"unicode"
)

// DatasetResult reports one exported dataset.
type DatasetResult struct {
	Path  string `json:"path"`
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// Result is the response body of a completed export.
type Result struct {
	File     string          `json:"file"`
	Datasets []DatasetResult `json:"datasets"`
}

// TableName derives a DuckDB table name from a dataset path. Separators
// and non-alphanumeric runes become underscores; a leading digit gets a
// "t_" prefix.
func TableName(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}
	var b strings.Builder
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := b.String()
	if unicode.IsDigit(rune(name[0])) {
		name = "t_" + name
	}
	return name
}
