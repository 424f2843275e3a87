/*
 * Copyright © 2025 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package plog provides the context-scoped logging convention used
// throughout this module: L(ctx) returns an entry already carrying
// whatever fields earlier code attached to the context.
package plog

import (
	"context"
	"io"

	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type ctxFieldsKey struct{}

var root = logrus.New()

func init() {
	root.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp: true,
	})
}

// SetOutput redirects the package logger, e.g. to a lumberjack.Logger for
// rotated file output in long-running daemon use.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// SetLevel parses and applies a level name, ignoring an invalid one.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		root.SetLevel(lvl)
	}
}

// NewRotatingWriter builds the conventional lumberjack-backed writer for
// SetOutput.
func NewRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
}

// WithField returns a child context carrying an additional structured field
// for every subsequent L(ctx) call.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	fields := fieldsFrom(ctx).Clone()
	fields[key] = value
	return context.WithValue(ctx, ctxFieldsKey{}, fields)
}

// L returns the logger entry for ctx, carrying any fields attached via
// WithField along the way.
func L(ctx context.Context) *logrus.Entry {
	return root.WithFields(logrus.Fields(fieldsFrom(ctx)))
}

type fields map[string]interface{}

func (f fields) Clone() fields {
	c := make(fields, len(f)+1)
	for k, v := range f {
		c[k] = v
	}
	return c
}

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return fields{}
	}
	if f, ok := ctx.Value(ctxFieldsKey{}).(fields); ok {
		return f
	}
	return fields{}
}
