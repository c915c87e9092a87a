// Package core builds the zap cores behind ion's Logger.
package core

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// SentinelKey carries the log call's context.Context through zap.Reflect so
// the otelzap bridge can correlate records with the active span. Console and
// file cores drop it.
const SentinelKey = "__ion_ctx__"

// SystemFieldPrefix marks fields reserved for ion itself.
const SystemFieldPrefix = "__ion_"

// dropCore removes fields whose key is listed, or starts with SystemFieldPrefix
// when dropSystem is set, before delegating.
type dropCore struct {
	zapcore.Core
	keys       []string
	dropSystem bool
}

// DropFields wraps core so the named fields never reach it.
func DropFields(core zapcore.Core, keys ...string) zapcore.Core {
	return &dropCore{Core: core, keys: keys}
}

// DropSystemFields wraps core so fields prefixed with SystemFieldPrefix never
// reach it.
func DropSystemFields(core zapcore.Core) zapcore.Core {
	return &dropCore{Core: core, dropSystem: true}
}

func (c *dropCore) With(fields []zapcore.Field) zapcore.Core {
	return &dropCore{Core: c.Core.With(c.keep(fields)), keys: c.keys, dropSystem: c.dropSystem}
}

func (c *dropCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *dropCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, c.keep(fields))
}

func (c *dropCore) keep(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if !c.drops(f.Key) {
			out = append(out, f)
		}
	}
	return out
}

func (c *dropCore) drops(key string) bool {
	if c.dropSystem && strings.HasPrefix(key, SystemFieldPrefix) {
		return true
	}
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}

// leveledCore overrides the Enabled check of a core that has no level of its
// own, such as the otelzap bridge.
type leveledCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (l *leveledCore) Enabled(lvl zapcore.Level) bool {
	return l.level.Enabled(lvl)
}

func (l *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{Core: l.Core.With(fields), level: l.level}
}

func (l *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if l.Enabled(ent.Level) {
		return ce.AddCore(ent, l)
	}
	return ce
}
