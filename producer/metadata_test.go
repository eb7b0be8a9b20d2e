/*
DESCRIPTION
  metadata_test.go provides testing for the frame metadata codec.

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
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadFrame(t *testing.T) {
	meta := FrameMetadata{
		Timestamp: 123456789,
		FrameID:   7,
		Width:     4,
		Height:    2,
		Stride:    4,
		Exposure:  1000,
		Gain:      200,
		Format:    FormatRaw8,
	}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	var buf bytes.Buffer
	err := WriteFrame(&buf, meta, payload)
	if err != nil {
		t.Fatalf("could not write frame: %v", err)
	}
	if buf.Len() != MetadataSize+len(payload) {
		t.Fatalf("unexpected encoded length: got %d want %d", buf.Len(), MetadataSize+len(payload))
	}

	got, gotPayload, err := ReadFrame(&buf, nil, len(payload))
	if err != nil {
		t.Fatalf("could not read frame: %v", err)
	}

	meta.Magic = Magic
	meta.Size = uint32(len(payload))
	if !cmp.Equal(got, meta) {
		t.Errorf("unexpected metadata:\n%s", cmp.Diff(meta, got))
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("unexpected payload: got %v want %v", gotPayload, payload)
	}
}

func TestReadFrameErrors(t *testing.T) {
	good := func() []byte {
		var buf bytes.Buffer
		WriteFrame(&buf, FrameMetadata{Format: FormatH264}, []byte{0, 0, 0, 1, 0x65})
		return buf.Bytes()
	}

	badMagic := good()
	badMagic[0] ^= 0xff

	// A garbage size field must not be trusted for allocation.
	huge := good()
	huge[24], huge[25], huge[26], huge[27] = 0xff, 0xff, 0xff, 0xff

	tests := []struct {
		name  string
		in    []byte
		limit int
		want  error
	}{
		{name: "empty", in: nil, want: io.EOF},
		{name: "short header", in: good()[:10], want: io.ErrUnexpectedEOF},
		{name: "bad magic", in: badMagic, want: ErrBadMagic},
		{name: "short payload", in: good()[:MetadataSize+2], want: io.ErrUnexpectedEOF},
		{name: "oversized", in: huge, want: ErrFrameTooLarge},
		{name: "over limit", in: good(), limit: 4, want: ErrFrameTooLarge},
	}

	for _, test := range tests {
		limit := test.limit
		if limit == 0 {
			limit = 1 << 20
		}
		_, _, err := ReadFrame(bytes.NewReader(test.in), nil, limit)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: unexpected error: got %v want %v", test.name, err, test.want)
		}
	}
}

func TestIsHeader(t *testing.T) {
	tests := []struct {
		meta FrameMetadata
		want bool
	}{
		{FrameMetadata{Format: FormatH264, FrameID: HeaderFrameID}, true},
		{FrameMetadata{Format: FormatH265, FrameID: HeaderFrameID}, true},
		{FrameMetadata{Format: FormatH264, FrameID: 3}, false},
		{FrameMetadata{Format: FormatNV12, FrameID: HeaderFrameID}, false},
	}
	for i, test := range tests {
		if got := test.meta.IsHeader(); got != test.want {
			t.Errorf("test %d: got %v want %v", i, got, test.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for f := range formatNames {
		got, err := ParseFormat(f.String())
		if err != nil {
			t.Errorf("could not parse %s: %v", f, err)
			continue
		}
		if got != f {
			t.Errorf("got %v want %v", got, f)
		}
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Error("expected error for unknown format name")
	}
	if got := Format(99).String(); got != "unknown(99)" {
		t.Errorf("unexpected name for unknown format: %s", got)
	}
}
