package wasmlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop()
	l.Debugf("hello %d", 1)
	l.Infof("world")
	require.NoError(t, l.Sync())
}

func TestNewDebugProducesDevelopmentLogger(t *testing.T) {
	l := New(true)
	require.NotNil(t, l)
	l.Named("linker").Debugf("resolving import %s.%s", "env", "memory")
}

func TestWithAddsFields(t *testing.T) {
	l := Nop()
	child := l.With()
	require.NotNil(t, child)
}
