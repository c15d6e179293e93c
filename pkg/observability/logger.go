// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package observability provides logging and metrics.
package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedisct1/dlog"
)

// Logger is the structured logger interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a log field.
type Field struct {
	Key   string
	Value any
}

// Level is a logger severity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

// ParseLevel maps a config string to a Level. Unknown names fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// DlogSeverity converts a Level to the dlog severity used by the process-wide sink.
func (l Level) DlogSeverity() dlog.Severity {
	switch l {
	case LevelDebug:
		return dlog.SeverityDebug
	case LevelWarn:
		return dlog.SeverityWarning
	case LevelError:
		return dlog.SeverityError
	default:
		return dlog.SeverityInfo
	}
}

// logger renders fields as key=value pairs and hands the line to dlog.
// Filtering happens here so independent loggers can run at different levels.
type logger struct {
	level  Level
	fields []Field
}

// NewLogger creates a new logger.
func NewLogger(level string) Logger {
	return &logger{level: ParseLevel(level)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &logger{level: levelOff}
}

func (l *logger) Debug(msg string, fields ...Field) {
	if l.level > LevelDebug {
		return
	}
	dlog.Debug(l.render(msg, fields))
}

func (l *logger) Info(msg string, fields ...Field) {
	if l.level > LevelInfo {
		return
	}
	dlog.Info(l.render(msg, fields))
}

func (l *logger) Warn(msg string, fields ...Field) {
	if l.level > LevelWarn {
		return
	}
	dlog.Warn(l.render(msg, fields))
}

func (l *logger) Error(msg string, fields ...Field) {
	if l.level > LevelError {
		return
	}
	dlog.Error(l.render(msg, fields))
}

func (l *logger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{level: l.level, fields: merged}
}

func (l *logger) render(msg string, fields []Field) string {
	if len(l.fields) == 0 && len(fields) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			b.WriteByte(' ')
			b.WriteString(f.Key)
			b.WriteByte('=')
			b.WriteString(formatValue(f.Value))
		}
	}
	return b.String()
}

func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		s = val
	case error:
		s = val.Error()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
