/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides module and level scoped logging.
//
// The default implementation writes to stderr through the standard library
// logger. A custom logging implementation can be plugged in by calling
// Initialize() with a LoggerProvider before any line is logged.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"sync"
)

const defaultLevel = INFO

var (
	providerMu     sync.RWMutex
	customProvider LoggerProvider
	providerInUse  bool

	levelsMu     sync.RWMutex
	moduleLevels = map[string]Level{}
)

// Initialize sets a custom logger provider for all loggers created afterwards.
// It must be called before any logging happens; once any logger has written a
// line the provider in use is frozen.
func Initialize(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if providerInUse {
		return
	}

	customProvider = p
}

// Log is an implementation of the Logger interface.
// It encapsulates the default or a custom logger to provide module and level based logging.
type Log struct {
	instance Logger
	module   string
	once     sync.Once
}

// New creates and returns a Logger implementation based on the given module name.
// note: the underlying logger instance is lazily initialized on first use.
func New(module string) *Log {
	return &Log{module: module}
}

// Fatalf calls Fatalf on the underlying logger.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	l.logger().Fatalf(msg, args...)
}

// Panicf calls Panicf on the underlying logger.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.logger().Panicf(msg, args...)
}

// Errorf calls Errorf on the underlying logger.
func (l *Log) Errorf(msg string, args ...interface{}) {
	l.logger().Errorf(msg, args...)
}

// Warnf calls Warnf on the underlying logger.
func (l *Log) Warnf(msg string, args ...interface{}) {
	l.logger().Warnf(msg, args...)
}

// Infof calls Infof on the underlying logger.
func (l *Log) Infof(msg string, args ...interface{}) {
	l.logger().Infof(msg, args...)
}

// Debugf calls Debugf on the underlying logger.
func (l *Log) Debugf(msg string, args ...interface{}) {
	l.logger().Debugf(msg, args...)
}

func (l *Log) logger() Logger {
	l.once.Do(func() {
		providerMu.Lock()
		providerInUse = true
		p := customProvider
		providerMu.Unlock()

		if p != nil {
			l.instance = p.GetLogger(l.module)
			return
		}

		l.instance = &defLog{
			logger: stdlog.New(os.Stderr, fmt.Sprintf(" [%s] ", l.module), stdlog.Ldate|stdlog.Ltime|stdlog.LUTC),
			module: l.module,
		}
	})

	return l.instance
}

// SetLevel sets the log level for the given module.
func SetLevel(module string, level Level) {
	levelsMu.Lock()
	defer levelsMu.Unlock()

	moduleLevels[module] = level
}

// GetLevel returns the log level for the given module.
// If not set, the default logging level is INFO.
func GetLevel(module string) Level {
	levelsMu.RLock()
	defer levelsMu.RUnlock()

	if level, ok := moduleLevels[module]; ok {
		return level
	}

	return defaultLevel
}

// IsEnabledFor returns whether the given log level is enabled for the given module.
func IsEnabledFor(module string, level Level) bool {
	return level <= GetLevel(module)
}

// defLog is the standard default logger implementation.
type defLog struct {
	logger *stdlog.Logger
	module string
}

func (l *defLog) Fatalf(format string, args ...interface{}) {
	l.logf(CRITICAL, format, args...)
	os.Exit(1)
}

func (l *defLog) Panicf(format string, args ...interface{}) {
	l.logf(CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *defLog) Errorf(format string, args ...interface{}) {
	if !IsEnabledFor(l.module, ERROR) {
		return
	}

	l.logf(ERROR, format, args...)
}

func (l *defLog) Warnf(format string, args ...interface{}) {
	if !IsEnabledFor(l.module, WARNING) {
		return
	}

	l.logf(WARNING, format, args...)
}

func (l *defLog) Infof(format string, args ...interface{}) {
	if !IsEnabledFor(l.module, INFO) {
		return
	}

	l.logf(INFO, format, args...)
}

func (l *defLog) Debugf(format string, args ...interface{}) {
	if !IsEnabledFor(l.module, DEBUG) {
		return
	}

	l.logf(DEBUG, format, args...)
}

func (l *defLog) logf(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf("%s %s", level, fmt.Sprintf(format, args...))

	if err := l.logger.Output(2, msg); err != nil {
		fmt.Fprintf(os.Stderr, "logger: error writing log line: %s", err)
	}
}
