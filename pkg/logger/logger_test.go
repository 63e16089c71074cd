package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestGetLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, L.Logger, G(ctx).Logger)

	custom := logrus.NewEntry(logrus.New()).WithField("skill", "pdf-tools")
	ctx = WithLogger(ctx, custom)
	assert.Equal(t, "pdf-tools", G(ctx).Data["skill"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	ctx := WithLogger(context.Background(), logrus.NewEntry(l).WithField("run_id", "abc"))

	ctx = WithFields(ctx, logrus.Fields{"skill": "pdf-tools"})
	G(ctx).Info("packaged")

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "skill=pdf-tools")
	assert.Contains(t, out, "packaged")
}

func TestConfigure(t *testing.T) {
	origLevel := L.Logger.GetLevel()
	origFormatter := L.Logger.Formatter
	origOut := L.Logger.Out
	t.Cleanup(func() {
		L.Logger.SetLevel(origLevel)
		L.Logger.Formatter = origFormatter
		L.Logger.SetOutput(origOut)
	})

	var buf bytes.Buffer
	require.NoError(t, Configure("debug", "json", &buf))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	G(context.Background()).WithField("path", "SKILL.md").Debug("added to archive")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["logLevel"])
	assert.Equal(t, "added to archive", entry["message"])
	assert.Equal(t, "SKILL.md", entry["path"])
	_, err := time.Parse(time.RFC3339Nano, entry["timestamp"].(string))
	assert.NoError(t, err)
}

func TestConfigureRejectsBadValues(t *testing.T) {
	assert.Error(t, Configure("chatty", "", nil))
	assert.Error(t, Configure("", "xml", nil))
	assert.NoError(t, Configure("", "", nil))
}
