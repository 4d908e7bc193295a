package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerDefaultDiscards(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	l.Info("nothing to see")
}

func TestSetLoggerCapturesComponent(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	SetLogger(l)
	defer SetLogger(nil)

	assert.Same(t, l, Logger())
	Component(nil, "reader").WithField("object", 7).Debug("repaired stream length")

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "repaired stream length", entry.Message)
	assert.Equal(t, "reader", entry.Data["component"])
	assert.Equal(t, 7, entry.Data["object"])
}

func TestComponentExplicitLogger(t *testing.T) {
	SetLogger(nil)
	l, hook := test.NewNullLogger()
	Component(l, "risk").Warn("x")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "risk", hook.LastEntry().Data["component"])
}
