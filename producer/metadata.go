/*
DESCRIPTION
  metadata.go provides FrameMetadata, the fixed layout record that precedes
  every frame payload sent by the camera producer, and its binary encoding.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package producer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Magic is the validity tag at the start of every metadata record ("VOXL").
const Magic = 0x564F584C

// MetadataSize is the encoded size of a metadata record in bytes.
const MetadataSize = 44

// HeaderFrameID is the frame id a producer uses to tag a record of a
// compressed format that carries codec parameter sets rather than a picture.
const HeaderFrameID = 0xFFFFFFFF

// Errors returned by ReadFrame.
var (
	ErrBadMagic      = errors.New("bad metadata magic number")
	ErrFrameTooLarge = errors.New("frame larger than allowed")
)

// FrameMetadata describes a single frame delivered by the producer.
type FrameMetadata struct {
	Magic     uint32
	Timestamp uint64 // Capture time in nanoseconds on a monotonic clock.
	FrameID   uint32
	Width     uint32
	Height    uint32
	Size      uint32 // Length of the payload that follows in bytes.
	Stride    uint32
	Exposure  uint32 // Exposure in nanoseconds.
	Gain      uint32
	Format    Format
}

// IsHeader returns true if the record carries codec parameter sets. Only
// compressed formats can carry a header.
func (m FrameMetadata) IsHeader() bool {
	return m.Format.Compressed() && m.FrameID == HeaderFrameID
}

// MarshalBinary encodes m into its little endian wire layout.
func (m FrameMetadata) MarshalBinary() ([]byte, error) {
	b := make([]byte, MetadataSize)
	m.put(b)
	return b, nil
}

func (m FrameMetadata) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], m.Magic)
	le.PutUint64(b[4:], m.Timestamp)
	le.PutUint32(b[12:], m.FrameID)
	le.PutUint32(b[16:], m.Width)
	le.PutUint32(b[20:], m.Height)
	le.PutUint32(b[24:], m.Size)
	le.PutUint32(b[28:], m.Stride)
	le.PutUint32(b[32:], m.Exposure)
	le.PutUint32(b[36:], m.Gain)
	le.PutUint32(b[40:], uint32(m.Format))
}

// UnmarshalBinary decodes a metadata record from b. The magic number is
// checked; no other field is validated.
func (m *FrameMetadata) UnmarshalBinary(b []byte) error {
	if len(b) < MetadataSize {
		return errors.Wrapf(io.ErrUnexpectedEOF, "metadata record needs %d bytes, have %d", MetadataSize, len(b))
	}
	le := binary.LittleEndian
	magic := le.Uint32(b[0:])
	if magic != Magic {
		return errors.Wrapf(ErrBadMagic, "got %#x", magic)
	}
	*m = FrameMetadata{
		Magic:     magic,
		Timestamp: le.Uint64(b[4:]),
		FrameID:   le.Uint32(b[12:]),
		Width:     le.Uint32(b[16:]),
		Height:    le.Uint32(b[20:]),
		Size:      le.Uint32(b[24:]),
		Stride:    le.Uint32(b[28:]),
		Exposure:  le.Uint32(b[32:]),
		Gain:      le.Uint32(b[36:]),
		Format:    Format(le.Uint32(b[40:])),
	}
	return nil
}

// ReadFrame reads one metadata record and its payload from r. The payload is
// read into buf if it has enough capacity, otherwise a new slice is allocated.
// A record announcing a payload of more than limit bytes is rejected with
// ErrFrameTooLarge before anything is allocated; the stream cannot be
// resynchronised after that.
func ReadFrame(r io.Reader, buf []byte, limit int) (FrameMetadata, []byte, error) {
	var hdr [MetadataSize]byte
	var m FrameMetadata
	_, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return m, nil, err
	}
	err = m.UnmarshalBinary(hdr[:])
	if err != nil {
		return m, nil, err
	}
	if int64(m.Size) > int64(limit) {
		return m, nil, errors.Wrapf(ErrFrameTooLarge, "frame %d has %d bytes, limit is %d", m.FrameID, m.Size, limit)
	}
	if cap(buf) < int(m.Size) {
		buf = make([]byte, m.Size)
	}
	buf = buf[:m.Size]
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return m, nil, errors.Wrap(err, "could not read frame payload")
	}
	return m, buf, nil
}

// WriteFrame writes the record m followed by payload to w. The Size field of
// m is set to len(payload).
func WriteFrame(w io.Writer, m FrameMetadata, payload []byte) error {
	m.Magic = Magic
	m.Size = uint32(len(payload))
	b := make([]byte, MetadataSize+len(payload))
	m.put(b)
	copy(b[MetadataSize:], payload)
	_, err := w.Write(b)
	return err
}
