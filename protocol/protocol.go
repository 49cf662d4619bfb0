// Package protocol reads and writes gRPC length-prefixed messages.
//
// Captured Platform traffic (grpc-web bodies, packet dumps, recorded fixtures) carries each
// protobuf message behind a 5-byte prefix:
//
//	0     1                 5
//	┌─────┬─────────────────┬───────────────┐
//	│flags│     length      │   message ... │
//	│ u8  │ uint32 (BE)     │ length bytes  │
//	└─────┴─────────────────┴───────────────┘
//
// Bit 0 of flags marks a compressed message. Bit 7 marks a grpc-web trailer frame.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize int = 5

	// MaxMessageSize matches the default receive limit of grpc-go.
	MaxMessageSize uint32 = 4 << 20
)

const (
	FlagCompressed byte = 0x01
	FlagTrailer    byte = 0x80
)

var ErrCompressed = errors.New("protocol: compressed messages are not supported")

// Header is the 5-byte message prefix.
type Header struct {
	Flags   byte
	BodyLen uint32
}

func (h *Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

func (h *Header) Trailer() bool { return h.Flags&FlagTrailer != 0 }

// Encode writes one length-prefixed message to w. h.BodyLen is ignored; the
// length of body is written instead.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint64(len(body)) > uint64(MaxMessageSize) {
		return fmt.Errorf("protocol: message of %d bytes exceeds limit of %d", len(body), MaxMessageSize)
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0] = h.Flags
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(body)))
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

// Decode reads one length-prefixed message from r.
// It returns io.EOF only when r is exhausted before the first header byte.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	h := &Header{
		Flags:   headerBuf[0],
		BodyLen: binary.BigEndian.Uint32(headerBuf[1:5]),
	}
	if h.Compressed() {
		return nil, nil, ErrCompressed
	}
	if h.BodyLen > MaxMessageSize {
		return nil, nil, fmt.Errorf("protocol: message of %d bytes exceeds limit of %d", h.BodyLen, MaxMessageSize)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	return h, body, nil
}

// DecodeAll reads messages until r is exhausted, skipping grpc-web trailer frames.
func DecodeAll(r io.Reader) ([][]byte, error) {
	var bodies [][]byte
	for {
		h, body, err := Decode(r)
		if err == io.EOF {
			return bodies, nil
		}
		if err != nil {
			return bodies, err
		}
		if h.Trailer() {
			continue
		}
		bodies = append(bodies, body)
	}
}
