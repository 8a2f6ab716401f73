package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventType is the type of events sent without an "event:" field.
const DefaultEventType = "message"

const maxLineLen = 1 << 20

var ErrLineTooLong = errors.New("sse: line too long")

// Event is one dispatched server-sent event.
type Event struct {
	Type  string
	Data  string
	ID    string
	Retry time.Duration
}

// Parser reads events from a text/event-stream body incrementally.
// Lines may end in CRLF, LF or CR.
type Parser struct {
	r *bufio.Reader

	skipLF    bool
	started   bool
	lastID    string
	retry     time.Duration
	eventType string
	data      strings.Builder
	hasData   bool
	line      []byte
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r)}
}

// LastEventID is the id of the most recent event that carried one.
func (p *Parser) LastEventID() string { return p.lastID }

// Next blocks until a complete event is available. An event cut off by the
// end of the stream is discarded and io.EOF returned.
func (p *Parser) Next() (Event, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			return Event{}, err
		}

		if line == "" {
			if !p.hasData {
				p.eventType = ""
				continue
			}
			return p.dispatch(), nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if p.hasData {
				p.data.WriteByte('\n')
			}
			p.data.WriteString(value)
			p.hasData = true
		case "event":
			p.eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				p.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				p.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

func (p *Parser) dispatch() Event {
	ev := Event{
		Type:  p.eventType,
		Data:  p.data.String(),
		ID:    p.lastID,
		Retry: p.retry,
	}
	if ev.Type == "" {
		ev.Type = DefaultEventType
	}
	p.eventType = ""
	p.data.Reset()
	p.hasData = false
	return ev
}

func (p *Parser) readLine() (string, error) {
	p.line = p.line[:0]
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			return "", err
		}
		if p.skipLF {
			p.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return p.finishLine(), nil
		case '\r':
			p.skipLF = true
			return p.finishLine(), nil
		}
		if len(p.line) >= maxLineLen {
			return "", ErrLineTooLong
		}
		p.line = append(p.line, b)
	}
}

func (p *Parser) finishLine() string {
	line := string(p.line)
	if !p.started {
		p.started = true
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return line
}
