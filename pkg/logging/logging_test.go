package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestLevels(t *testing.T) {
	for _, tc := range []struct {
		name    string
		quiet   bool
		verbose bool
		expect  []string
	}{
		{name: "default", expect: []string{"info-line", "warn-line", "error-line"}},
		{name: "quiet", quiet: true, expect: []string{"warn-line", "error-line"}},
		{name: "verbose", verbose: true, expect: []string{"debug-line", "info-line", "warn-line", "error-line"}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			stderr := &bytes.Buffer{}
			l := NewLogger(&bytes.Buffer{}, stderr, false, tc.quiet, tc.verbose)
			l.Debug("", "debug-line")
			l.Info("", "info-line")
			l.Warn("", "warn-line")
			l.Error("", "error-line")
			var got []string
			for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
				fields := strings.Fields(line)
				got = append(got, fields[len(fields)-1])
			}
			qt.Check(t, got, qt.DeepEquals, tc.expect)
		})
	}
}

func TestJSONLines(t *testing.T) {
	stderr := &bytes.Buffer{}
	l := NewLogger(&bytes.Buffer{}, stderr, true, false, false)
	l.Warn("health", "component %s is not alive", "hive")

	var line jsonLine
	err := json.Unmarshal(stderr.Bytes(), &line)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, line.Level, qt.Equals, "warn")
	qt.Check(t, line.Tag, qt.Equals, "health")
	qt.Check(t, line.Message, qt.Equals, "component hive is not alive")
}

func TestContextRoundTrip(t *testing.T) {
	stdout := &bytes.Buffer{}
	ctx := NewLogger(stdout, &bytes.Buffer{}, false, false, false).WithContext(context.Background())
	Ctx(ctx).Out("hello %d", 1)
	qt.Check(t, stdout.String(), qt.Equals, "hello 1\n")

	qt.Check(t, Ctx(context.Background()), qt.IsNotNil)
}

func TestBareContextIsQuiet(t *testing.T) {
	l := Ctx(context.Background())
	qt.Check(t, l.err, qt.Equals, io.Writer(os.Stderr))

	stderr := &bytes.Buffer{}
	l.err = stderr
	l.Info("", "info-line")
	qt.Check(t, stderr.String(), qt.Equals, "")
	l.Warn("", "warn-line")
	qt.Check(t, stderr.String(), qt.Contains, "warn-line")
}
