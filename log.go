// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package kms

import "log"

// LogPriority orders log messages by severity, matching the libdrm/
// libliftoff convention that this client API (spec §6) is modeled on.
type LogPriority int

// LogPriority values, from most to least severe.
const (
	LogError LogPriority = iota
	LogWarning
	LogInfo
	LogDebug
)

// LogHandler receives a formatted log message at the given priority.
type LogHandler func(priority LogPriority, format string, args ...any)

var (
	logPriority                = LogInfo
	logHandler      LogHandler = defaultLogHandler
)

// SetLogPriority sets the maximum priority that will reach the handler.
// Messages at a lower severity (i.e. a higher LogPriority value) than p
// are dropped without formatting.
func SetLogPriority(p LogPriority) {
	logPriority = p
}

// SetLogHandler installs h as the destination for log messages. Passing
// nil restores the default handler, which writes to stderr via the
// standard log package.
func SetLogHandler(h LogHandler) {
	if h == nil {
		h = defaultLogHandler
	}
	logHandler = h
}

func defaultLogHandler(priority LogPriority, format string, args ...any) {
	var prefix string
	switch priority {
	case LogError:
		prefix = "[!] "
	case LogWarning:
		prefix = "[w] "
	}
	log.Printf(prefix+format, args...)
}

func logf(priority LogPriority, format string, args ...any) {
	if priority > logPriority {
		return
	}
	logHandler(priority, format, args...)
}
