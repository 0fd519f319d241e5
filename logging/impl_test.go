package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.viam.com/test"
)

func newBufferLogger(buf *bytes.Buffer, level Level) Logger {
	return newImpl("impl", level, true, NewWriterAppender(buf))
}

func TestConsoleFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, DEBUG)

	logger.Infow("backing up", "distance", -0.2)
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, len(parts), test.ShouldEqual, 6)
	test.That(t, parts[1], test.ShouldContainSubstring, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "impl")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "backing up")
	test.That(t, parts[5], test.ShouldContainSubstring, `"distance"`)
	test.That(t, parts[5], test.ShouldContainSubstring, "-0.2")
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, WARN)

	logger.Debugw("hidden")
	logger.Infow("hidden")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Warnw("shown")
	test.That(t, buf.String(), test.ShouldContainSubstring, "shown")

	buf.Reset()
	logger.SetLevel(DEBUG)
	logger.Debugw("now shown")
	test.That(t, buf.String(), test.ShouldContainSubstring, "now shown")
}

func TestDebugModeContext(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(INFO)

	logger.CDebugw(context.Background(), "hidden")
	test.That(t, observed.Len(), test.ShouldEqual, 0)

	ctx := EnableDebugMode(context.Background(), "")
	test.That(t, IsDebugMode(ctx), test.ShouldBeTrue)
	name := DebugModeName(ctx)
	test.That(t, name, test.ShouldHaveLength, 6)

	logger.CDebugw(ctx, "tick", "n", 1)
	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].Message, test.ShouldEqual, "tick")
	test.That(t, entries[0].ContextMap()["debug_mode"], test.ShouldEqual, name)

	test.That(t, DebugModeName(EnableDebugMode(ctx, "goal-7")), test.ShouldEqual, "goal-7")
}

func TestUnpairedKey(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Warnw("odd", "distance", 0.1, "dangling")

	fields := observed.All()[0].ContextMap()
	test.That(t, fields["distance"], test.ShouldEqual, 0.1)
	test.That(t, fields["error"], test.ShouldContainSubstring, `"dangling" has no value`)
}

func TestSublogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("backup").Sublogger("tracker")
	sub.Infow("sample", "x", 1.5)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "backup.tracker")
	test.That(t, entries[0].ContextMap()["x"], test.ShouldEqual, 1.5)
}

func TestGlobalFallback(t *testing.T) {
	previous := Global()
	t.Cleanup(func() { ReplaceGlobal(previous) })

	logger, observed := NewObservedTestLogger(t)
	ReplaceGlobal(logger)
	Global().Sublogger("base").Infow("moved")
	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "base")
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"", INFO},
		{"warning", WARN},
		{"Error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
		roundTrip, err := LevelFromString(level.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, roundTrip, test.ShouldEqual, level)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldBeError)
}
