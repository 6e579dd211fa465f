package logging

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Ring keeps the most recent encoded log lines in memory for the debug endpoint.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRing creates a Ring holding at most size lines.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 200
	}
	return &Ring{lines: make([]string, size)}
}

// Add appends one line, evicting the oldest once full.
func (r *Ring) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Lines returns the retained lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}

// Core returns a zapcore.Core writing JSON-encoded entries into the ring.
func (r *Ring) Core(enab zapcore.LevelEnabler) zapcore.Core {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     "",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	return &ringCore{
		LevelEnabler: enab,
		enc:          zapcore.NewJSONEncoder(encCfg),
		ring:         r,
	}
}

type ringCore struct {
	zapcore.LevelEnabler
	enc  zapcore.Encoder
	ring *Ring
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &ringCore{
		LevelEnabler: c.LevelEnabler,
		enc:          c.enc.Clone(),
		ring:         c.ring,
	}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if ent.Time.IsZero() {
		ent.Time = time.Now()
	}
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	c.ring.Add(strings.TrimRight(buf.String(), "\n"))
	buf.Free()
	return nil
}

func (c *ringCore) Sync() error {
	return nil
}
