package vcam

import (
	"fmt"

	"github.com/pion/rtp"
)

// DefaultPreviewMTU is the RTP payload budget per packet.
const DefaultPreviewMTU = 1200

// previewClockRate is the standard 90 kHz video RTP clock.
const previewClockRate = 90000

// PacketWriter receives RTP packets from the preview tap. Implementations
// typically hand packets to a local preview consumer.
type PacketWriter interface {
	WriteRTP(pkt *rtp.Packet) error
}

// PreviewTap fragments encoded chunks into RTP packets for a live preview
// consumer alongside the export. It is best-effort: write failures are
// reported to the caller and never affect the container output.
type PreviewTap struct {
	writer      PacketWriter
	mtu         int
	payloadType uint8
	ssrc        uint32
	sequencer   rtp.Sequencer
}

// NewPreviewTap creates a preview tap writing to the given packet sink.
// An mtu of 0 selects DefaultPreviewMTU.
func NewPreviewTap(writer PacketWriter, payloadType uint8, ssrc uint32, mtu int) *PreviewTap {
	if mtu <= 0 {
		mtu = DefaultPreviewMTU
	}
	return &PreviewTap{
		writer:      writer,
		mtu:         mtu,
		payloadType: payloadType,
		ssrc:        ssrc,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

// WriteChunk packetizes one chunk. The chunk's microsecond timestamp maps
// onto the 90 kHz RTP clock, and the marker bit flags the final fragment.
func (t *PreviewTap) WriteChunk(chunk *EncodedChunk) error {
	if t.writer == nil {
		return nil
	}

	// micros * 90000 / 1e6
	ts := uint32(chunk.TimestampMicros * 9 / 100)

	payload := chunk.Data
	for len(payload) > 0 {
		n := len(payload)
		if n > t.mtu {
			n = t.mtu
		}

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         n == len(payload),
				PayloadType:    t.payloadType,
				SequenceNumber: t.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
				SSRC:           t.ssrc,
			},
			Payload: payload[:n],
		}
		if err := t.writer.WriteRTP(pkt); err != nil {
			return fmt.Errorf("write rtp: %w", err)
		}
		payload = payload[n:]
	}
	return nil
}
