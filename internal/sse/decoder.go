package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

type Kind int

const (
	KindContent Kind = iota
	KindError
	KindDone
	// KindMalformed marks a data line whose payload did not parse. Raw holds it.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type Frame struct {
	Kind    Kind
	Content string
	Error   string
	Raw     string
}

// Decoder yields frames from a byte stream. Reads may split lines at any
// point; partial lines are held until their newline arrives.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
// Lines without the data prefix (blank separators, comments) are skipped.
func (d *Decoder) Next() (Frame, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if len(line) > 0 {
			if f, ok := parseLine(line); ok {
				return f, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
	}
}

func parseLine(line []byte) (Frame, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return Frame{}, false
	}
	data := line[len(dataPrefix):]
	if string(data) == DoneMarker {
		return Frame{Kind: KindDone}, true
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Frame{Kind: KindMalformed, Raw: string(data)}, true
	}
	if p.Error != nil && *p.Error != "" {
		return Frame{Kind: KindError, Error: *p.Error}, true
	}
	f := Frame{Kind: KindContent}
	if p.Content != nil {
		f.Content = *p.Content
	}
	return f, true
}
