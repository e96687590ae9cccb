// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package bridge

import (
	"time"

	"github.com/cryodaq/cryodaq/internal/config"
)

// Defaults applied when the main configuration leaves a bridge knob zero.
const (
	defaultStreamName      = "CRYODAQ"
	defaultSubjectPrefix   = "cryodaq.data"
	defaultDedupWindow     = 2 * time.Minute
	defaultRetentionDays   = 7
	defaultMaxReconnects   = -1 // unlimited
	defaultReconnectWait   = 2 * time.Second
	defaultReconnectBuffer = 8 * 1024 * 1024
	defaultQueueDepth      = 1024
)

// Config is the resolved bridge configuration derived from the main
// NATS section.
type Config struct {
	URL            string
	EmbeddedServer bool
	StoreDir       string
	MaxMemory      int64
	MaxStore       int64

	StreamName    string
	SubjectPrefix string
	MaxAge        time.Duration
	DedupWindow   time.Duration

	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// QueueDepth bounds the tap buffer between the dispatcher and the
	// publish loop. Events past the bound are dropped and counted.
	QueueDepth int
}

// FromConfig resolves a bridge Config from the main NATS section,
// filling defaults for anything left unset.
func FromConfig(cfg config.NATSConfig) Config {
	out := Config{
		URL:             cfg.URL,
		EmbeddedServer:  cfg.EmbeddedServer,
		StoreDir:        cfg.StoreDir,
		MaxMemory:       cfg.MaxMemory,
		MaxStore:        cfg.MaxStore,
		StreamName:      defaultStreamName,
		SubjectPrefix:   cfg.SubjectPrefix,
		DedupWindow:     cfg.DedupWindow,
		MaxReconnects:   defaultMaxReconnects,
		ReconnectWait:   defaultReconnectWait,
		ReconnectBuffer: defaultReconnectBuffer,
		QueueDepth:      defaultQueueDepth,
	}
	if out.SubjectPrefix == "" {
		out.SubjectPrefix = defaultSubjectPrefix
	}
	if out.DedupWindow <= 0 {
		out.DedupWindow = defaultDedupWindow
	}
	days := cfg.StreamRetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	out.MaxAge = time.Duration(days) * 24 * time.Hour
	return out
}

// SubjectCreated is the subject for dataset creation events.
func (c Config) SubjectCreated() string {
	return c.SubjectPrefix + ".created"
}

// SubjectAppended is the subject for batch append events.
func (c Config) SubjectAppended() string {
	return c.SubjectPrefix + ".appended"
}

// StreamSubjects returns the subject filter the stream binds.
func (c Config) StreamSubjects() []string {
	return []string{c.SubjectPrefix + ".>"}
}
