package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/assetcache"
)

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", assetcache.Fields{"id": "logo", "bytes": 12})
	l.Warn("w", assetcache.Fields{"err": errors.New("boom")})
	l.Error("e", nil)

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)

	ctx := entries[1].ContextMap()
	assert.Equal(t, "logo", ctx["id"])
	assert.EqualValues(t, 12, ctx["bytes"])
	assert.Equal(t, "boom", entries[2].ContextMap()["err"])
}

func TestNilLoggerIsNop(t *testing.T) {
	assert.NotPanics(t, func() { New(nil).Info("x", assetcache.Fields{"a": 1}) })
}
