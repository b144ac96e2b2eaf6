package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"stratmgr/internal/schema"
)

var (
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("journal: payload too large")
)

// ReaderOptions controls frame decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal frames sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
}

// NewReader wraps an io.Reader with journal frame decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, frameHeaderSize),
	}
}

// Next returns the next frame header and payload.
// The payload is only valid until the next call to Next.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	var header schema.EventHeader

	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return header, nil, io.EOF
		}
		return header, nil, err
	}

	header, payloadLen, err := decodeFrameHeader(r.headerBuf)
	if err != nil {
		return header, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return header, nil, ErrPayloadTooLarge
	}

	if payloadLen > 0 {
		if cap(r.payload) < int(payloadLen) {
			r.payload = make([]byte, payloadLen)
		}
		r.payload = r.payload[:payloadLen]
		if _, err := io.ReadFull(r.r, r.payload); err != nil {
			return header, nil, err
		}
	} else {
		r.payload = r.payload[:0]
	}

	var checksumBuf [frameChecksumSize]byte
	if _, err := io.ReadFull(r.r, checksumBuf[:]); err != nil {
		return header, nil, err
	}

	if !r.opts.DisableChecksum {
		expected := binary.LittleEndian.Uint32(checksumBuf[:])
		if sum := checksum(r.headerBuf, r.payload); sum != expected {
			return header, nil, ErrChecksumMismatch
		}
	}

	return header, r.payload, nil
}
