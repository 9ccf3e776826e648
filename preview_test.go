package vcam

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pion/rtp"
)

type captureSink struct {
	packets []*rtp.Packet
	err     error
}

func (s *captureSink) WriteRTP(pkt *rtp.Packet) error {
	if s.err != nil {
		return s.err
	}
	s.packets = append(s.packets, pkt)
	return nil
}

func TestPreviewTapFragmentsChunk(t *testing.T) {
	sink := &captureSink{}
	tap := NewPreviewTap(sink, 96, 0x1234, 100)

	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}

	err := tap.WriteChunk(&EncodedChunk{Data: data, TimestampMicros: 1_000_000})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if len(sink.packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(sink.packets))
	}

	var reassembled []byte
	for i, pkt := range sink.packets {
		if pkt.Version != 2 {
			t.Errorf("packet %d: version %d", i, pkt.Version)
		}
		if pkt.PayloadType != 96 {
			t.Errorf("packet %d: payload type %d", i, pkt.PayloadType)
		}
		if pkt.SSRC != 0x1234 {
			t.Errorf("packet %d: ssrc %x", i, pkt.SSRC)
		}
		// 1 second on the 90 kHz clock.
		if pkt.Timestamp != 90000 {
			t.Errorf("packet %d: timestamp %d, want 90000", i, pkt.Timestamp)
		}
		wantMarker := i == len(sink.packets)-1
		if pkt.Marker != wantMarker {
			t.Errorf("packet %d: marker %v, want %v", i, pkt.Marker, wantMarker)
		}
		reassembled = append(reassembled, pkt.Payload...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("reassembled payload differs from chunk data")
	}

	// Sequence numbers must be consecutive.
	for i := 1; i < len(sink.packets); i++ {
		if sink.packets[i].SequenceNumber != sink.packets[i-1].SequenceNumber+1 {
			t.Errorf("sequence gap between packets %d and %d", i-1, i)
		}
	}
}

func TestPreviewTapSmallChunkSinglePacket(t *testing.T) {
	sink := &captureSink{}
	tap := NewPreviewTap(sink, 96, 1, 0) // default MTU

	if err := tap.WriteChunk(&EncodedChunk{Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sink.packets) != 1 || !sink.packets[0].Marker {
		t.Fatalf("got %d packets, want one marked packet", len(sink.packets))
	}
}

func TestPreviewTapPropagatesWriteError(t *testing.T) {
	wantErr := errors.New("sink closed")
	tap := NewPreviewTap(&captureSink{err: wantErr}, 96, 1, 0)

	err := tap.WriteChunk(&EncodedChunk{Data: []byte{1}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("write = %v, want %v", err, wantErr)
	}
}

func TestPreviewTapNilWriter(t *testing.T) {
	tap := NewPreviewTap(nil, 96, 1, 0)
	if err := tap.WriteChunk(&EncodedChunk{Data: []byte{1}}); err != nil {
		t.Fatalf("write = %v, want nil", err)
	}
}
