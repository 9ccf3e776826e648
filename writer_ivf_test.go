package vcam

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestIVFWriterLayout(t *testing.T) {
	w := NewIVFWriter()
	err := w.WriteHeader(&DecoderConfig{Codec: "avc1.64001f", CodedWidth: 1280, CodedHeight: 720})
	if err != nil {
		t.Fatalf("header: %v", err)
	}

	payload := []byte{0x01, 0x02, 0x03}
	if err := w.WriteChunk(&EncodedChunk{Data: payload, TimestampMicros: 33333}); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	out, err := w.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if string(out[0:4]) != "DKIF" {
		t.Fatalf("signature = %q", out[0:4])
	}
	if string(out[8:12]) != "H264" {
		t.Errorf("fourcc = %q", out[8:12])
	}
	if got := binary.LittleEndian.Uint16(out[12:14]); got != 1280 {
		t.Errorf("width = %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[16:20]); got != 1000000 {
		t.Errorf("timebase den = %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 1 {
		t.Errorf("frame count = %d", got)
	}

	frame := out[ivfHeaderSize:]
	if got := binary.LittleEndian.Uint32(frame[0:4]); got != uint32(len(payload)) {
		t.Errorf("frame size = %d", got)
	}
	if got := binary.LittleEndian.Uint64(frame[4:12]); got != 33333 {
		t.Errorf("frame timestamp = %d", got)
	}
	if string(frame[12:]) != string(payload) {
		t.Errorf("payload = %v", frame[12:])
	}
}

func TestIVFWriterRequiresHeader(t *testing.T) {
	w := NewIVFWriter()
	if err := w.WriteChunk(&EncodedChunk{Data: []byte{1}}); !errors.Is(err, errIVFHeaderNotWritten) {
		t.Fatalf("chunk = %v, want header-not-written", err)
	}
	if _, err := w.Finalize(); !errors.Is(err, errIVFHeaderNotWritten) {
		t.Fatalf("finalize = %v, want header-not-written", err)
	}
}

func TestIVFWriterRejectsBadHeader(t *testing.T) {
	w := NewIVFWriter()
	if err := w.WriteHeader(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if err := w.WriteHeader(&DecoderConfig{Codec: CodecMJPEG}); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestIVFFourCC(t *testing.T) {
	cases := map[string]string{
		"avc1.64001f": "H264",
		"mjpeg":       "MJPG",
		"vp8":         "VP80",
		"vp09.00.10":  "VP90",
		"av01.0.04M":  "AV01",
	}
	for codec, want := range cases {
		if got := string(ivfFourCC(codec)); got != want {
			t.Errorf("fourcc(%q) = %q, want %q", codec, got, want)
		}
	}
}
