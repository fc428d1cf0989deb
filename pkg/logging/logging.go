package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

type ctxKey struct{}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger writes tagged lines to its err stream.
// Out and OutRaw write to the out stream and are for results, not diagnostics.
type Logger struct {
	out     io.Writer
	err     io.Writer
	json    bool
	quiet   bool
	verbose bool
}

// DefaultLogger is quiet: library calls made without a configured logger
// only surface warnings and errors, on stderr.
func DefaultLogger() Logger {
	return Logger{
		out:   os.Stdout,
		err:   os.Stderr,
		quiet: true,
	}
}

// NewLogger builds a logger.
// quiet drops Info lines; verbose enables Debug lines. Warn and Error are always written.
// json switches diagnostics to one JSON object per line.
func NewLogger(out, err io.Writer, json, quiet, verbose bool) Logger {
	return Logger{
		out:     out,
		err:     err,
		json:    json,
		quiet:   quiet,
		verbose: verbose,
	}
}

// WithContext returns a copy of ctx carrying the logger.
func (l Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &l)
}

// Ctx returns the logger stored in ctx, or the default logger if there is none.
func Ctx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	l := DefaultLogger()
	return &l
}

func (l *Logger) Out(f string, args ...interface{}) {
	fmt.Fprintf(l.out, f+"\n", args...)
}

func (l *Logger) OutRaw(s string) {
	fmt.Fprintf(l.out, "%s", s)
}

func (l *Logger) Info(tag string, f string, args ...interface{}) {
	if l.quiet {
		return
	}
	l.print(LevelInfo, color.New(color.FgHiGreen), tag, f, args...)
}

func (l *Logger) Debug(tag string, f string, args ...interface{}) {
	if l.verbose {
		l.print(LevelDebug, color.New(color.FgGreen), tag, f, args...)
	}
}

func (l *Logger) Warn(tag string, f string, args ...interface{}) {
	l.print(LevelWarn, color.New(color.FgHiYellow), tag, f, args...)
}

func (l *Logger) Error(tag string, f string, args ...interface{}) {
	l.print(LevelError, color.New(color.FgHiRed, color.Bold), tag, f, args...)
}

type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"msg"`
}

func (l *Logger) print(level Level, tagColor *color.Color, tag, f string, args ...interface{}) {
	str := fmt.Sprintf(f, args...)
	if l.json {
		json.NewEncoder(l.err).Encode(jsonLine{
			Time:    time.Now().UTC().Format(time.RFC3339),
			Level:   level.String(),
			Tag:     tag,
			Message: str,
		})
		return
	}
	if tag == "" {
		tag = level.String()
	}
	for _, line := range strings.Split(str, "\n") {
		fmt.Fprintf(l.err, "%s  %s\n",
			tagColor.Sprint(tag),
			color.WhiteString(line))
	}
}
