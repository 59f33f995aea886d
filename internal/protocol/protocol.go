// Package protocol implements the newline-delimited status stream an action
// process writes to stdout: zero or more progress lines followed by exactly
// one terminal result line.
package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"actionrunner/internal/domain"
)

// ProgressField marks a progress line.
const ProgressField = "status_update"

// ErrTerminated is returned when writing after the terminal result.
var ErrTerminated = errors.New("protocol: terminal result already written")

type Kind string

const (
	KindProgress Kind = "progress"
	KindTerminal Kind = "terminal"
)

// Event is one recognised line of the stream.
type Event struct {
	Kind   Kind
	Value  string
	Result domain.Result
}

type line struct {
	StatusUpdate *string `json:"status_update"`
	Status       *string `json:"status"`
	Action       string  `json:"action"`
	Message      string  `json:"message"`
}

// ParseLine recognises a progress or terminal line. Anything else is rejected.
func ParseLine(b []byte) (Event, bool) {
	var l line
	if err := json.Unmarshal(b, &l); err != nil {
		return Event{}, false
	}
	if l.Status != nil && (*l.Status == domain.ResultOK || *l.Status == domain.ResultError) {
		return Event{
			Kind:   KindTerminal,
			Value:  *l.Status,
			Result: domain.Result{Status: *l.Status, Action: l.Action, Message: l.Message},
		}, true
	}
	if l.StatusUpdate != nil {
		return Event{Kind: KindProgress, Value: *l.StatusUpdate}, true
	}
	return Event{}, false
}

// Emitter writes the stream. It is safe for concurrent use.
type Emitter struct {
	mu   sync.Mutex
	w    io.Writer
	done bool
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Progress writes an advisory progress line.
func (e *Emitter) Progress(stage string) error {
	return e.write(map[string]string{ProgressField: stage}, false)
}

// Result writes the terminal line. Later writes fail with ErrTerminated.
func (e *Emitter) Result(r domain.Result) error {
	return e.write(r, true)
}

func (e *Emitter) write(v any, terminal bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return ErrTerminated
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(append(b, '\n')); err != nil {
		return err
	}
	e.done = terminal
	return nil
}

// Decode reads r to EOF, calling onProgress (when non-nil) for each progress
// line as it arrives. The last terminal line wins; raw holds the
// unrecognised lines.
func Decode(r io.Reader, onProgress func(stage string)) (res domain.Result, found bool, raw string, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var unparsed strings.Builder
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ev, ok := ParseLine([]byte(text))
		switch {
		case !ok:
			if unparsed.Len() < 4096 {
				unparsed.WriteString(text)
				unparsed.WriteByte('\n')
			}
		case ev.Kind == KindTerminal:
			res, found = ev.Result, true
		case onProgress != nil:
			onProgress(ev.Value)
		}
	}
	return res, found, strings.TrimSpace(unparsed.String()), sc.Err()
}

// Parse derives the authoritative result of a complete stdout capture.
func Parse(stdout string) domain.Result {
	res, found, raw, _ := Decode(strings.NewReader(stdout), nil)
	if found {
		return res
	}
	if raw == "" {
		raw = strings.TrimSpace(stdout)
	}
	return Unparsed(raw)
}

// Unparsed synthesizes the error result for output without a terminal line.
func Unparsed(raw string) domain.Result {
	return domain.Result{
		Status:  domain.ResultError,
		Message: "Could not parse output: " + Truncate(raw, 200),
	}
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
