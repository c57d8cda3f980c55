package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl          zerolog.Logger
	collector   *LogCollector
	collectWarn bool
}

type Config struct {
	Level       string // debug, info, warn, error, fatal, panic
	Format      string // json or console
	Output      string // stdout, stderr, or file path
	TimeFormat  string // time format for log messages
	Service     string // value of the "service" field on every entry
	CollectWarn bool   // also forward warnings to the collector
}

func New(cfg *Config) (*Logger, error) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	// Configure output writer
	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	// Configure time format (ensure it's not empty)
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// If format is "console", use human-readable, otherwise use JSON
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	return newLogger(output, cfg), nil
}

// NewWithWriter builds a JSON logger on w. Used by tests and the CLI.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return newLogger(w, &Config{}).withLevel(lvl)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func newLogger(output io.Writer, cfg *Config) *Logger {
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return &Logger{
		zl:          ctx.CallerWithSkipFrameCount(4).Logger(),
		collectWarn: cfg.CollectWarn,
	}
}

func (l *Logger) withLevel(lvl zerolog.Level) *Logger {
	l.zl = l.zl.Level(lvl)
	return l
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.value())
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector, collectWarn: l.collectWarn}
}

func (l *Logger) addToCollector(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	// skip this function and the level method
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if _, rel, found := strings.Cut(file, "TrendChart"); found {
			file = rel
		}
		caller = file + ":" + strconv.Itoa(line)
	}
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		values[f.Key] = f.value()
	}
	l.collector.AddLog(level, msg, values, caller)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.addTo(ev)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), msg, fields) }

// Warn also reaches the collector when the logger was built with CollectWarn.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
	if l.collectWarn {
		l.addToCollector("warn", msg, fields)
	}
}

// Error writes the entry and hands it to the collector, if any.
func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.addToCollector("error", msg, fields)
}

// AddCollector replaces the current collector, closing the old one.
func (l *Logger) AddCollector(config *CollectionConfig) {
	l.RemoveCollector()
	l.collector = NewLogCollector(config)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindBool
	kindError
	kindAny
)

// Field is one key/value pair of a log entry.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	any  interface{}
}

func (f Field) addTo(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.str)
	case kindInt:
		ev.Int64(f.Key, f.num)
	case kindBool:
		ev.Bool(f.Key, f.num != 0)
	case kindError:
		if err, _ := f.any.(error); err != nil {
			ev.AnErr(f.Key, err)
		}
	default:
		ev.Interface(f.Key, f.any)
	}
}

func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return f.num
	case kindBool:
		return f.num != 0
	case kindError:
		if err, _ := f.any.(error); err != nil {
			return err.Error()
		}
		return nil
	default:
		return f.any
	}
}

func String(key, value string) Field { return Field{Key: key, str: value} }

func Strings(key string, value []string) Field { return String(key, strings.Join(value, ", ")) }

func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }

// Duration logs d in whole milliseconds; name the key accordingly.
func Duration(key string, d time.Duration) Field { return Int64(key, d.Milliseconds()) }

func Bool(key string, v bool) Field {
	f := Field{Key: key, kind: kindBool}
	if v {
		f.num = 1
	}
	return f
}

// Error logs err under "error". A nil err is omitted.
func Error(err error) Field { return Field{Key: zerolog.ErrorFieldName, kind: kindError, any: err} }

func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, any: value} }
