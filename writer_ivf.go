package vcam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ContainerWriter assembles encoded chunks into an output container. The
// mux lane serializes all calls; implementations need no locking.
type ContainerWriter interface {
	// WriteHeader writes the container header from the decoder
	// configuration. Called once, before any chunk.
	WriteHeader(config *DecoderConfig) error

	// WriteChunk appends one encoded chunk.
	WriteChunk(chunk *EncodedChunk) error

	// Finalize patches trailing metadata and returns the container bytes.
	Finalize() ([]byte, error)
}

const (
	ivfHeaderSize      = 32
	ivfFrameHeaderSize = 12

	// Chunk timestamps are microseconds, so the IVF timebase is 1/1e6.
	ivfTimebaseDen = 1000000
	ivfTimebaseNum = 1
)

// ivfFrameCountOffset is where the frame count lives in the file header,
// patched during Finalize.
const ivfFrameCountOffset = 24

var errIVFHeaderNotWritten = errors.New("ivf: header not written")

// IVFWriter writes an IVF container ("DKIF") with microsecond timestamps.
type IVFWriter struct {
	buf           bytes.Buffer
	config        *DecoderConfig
	headerWritten bool
	frameCount    uint32
}

// NewIVFWriter creates an empty IVF writer.
func NewIVFWriter() *IVFWriter {
	return &IVFWriter{}
}

// WriteHeader writes the 32-byte IVF file header.
func (w *IVFWriter) WriteHeader(config *DecoderConfig) error {
	if w.headerWritten {
		return errors.New("ivf: header already written")
	}
	if config == nil {
		return errors.New("ivf: nil decoder config")
	}
	if config.CodedWidth <= 0 || config.CodedHeight <= 0 {
		return fmt.Errorf("ivf: invalid coded size %dx%d", config.CodedWidth, config.CodedHeight)
	}

	var hdr [ivfHeaderSize]byte
	copy(hdr[0:4], "DKIF")
	binary.LittleEndian.PutUint16(hdr[4:6], 0) // version
	binary.LittleEndian.PutUint16(hdr[6:8], ivfHeaderSize)
	copy(hdr[8:12], ivfFourCC(config.Codec))
	binary.LittleEndian.PutUint16(hdr[12:14], uint16(config.CodedWidth))
	binary.LittleEndian.PutUint16(hdr[14:16], uint16(config.CodedHeight))
	binary.LittleEndian.PutUint32(hdr[16:20], ivfTimebaseDen)
	binary.LittleEndian.PutUint32(hdr[20:24], ivfTimebaseNum)
	binary.LittleEndian.PutUint32(hdr[24:28], 0) // frame count, patched later
	// hdr[28:32] unused

	w.buf.Write(hdr[:])
	w.config = config
	w.headerWritten = true
	return nil
}

// WriteChunk appends one frame: a 12-byte frame header (payload size and
// microsecond timestamp) followed by the payload.
func (w *IVFWriter) WriteChunk(chunk *EncodedChunk) error {
	if !w.headerWritten {
		return errIVFHeaderNotWritten
	}

	var hdr [ivfFrameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(chunk.Data)))
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(chunk.TimestampMicros))
	w.buf.Write(hdr[:])
	w.buf.Write(chunk.Data)
	w.frameCount++
	return nil
}

// Finalize patches the frame count and returns the container bytes.
func (w *IVFWriter) Finalize() ([]byte, error) {
	if !w.headerWritten {
		return nil, errIVFHeaderNotWritten
	}
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	binary.LittleEndian.PutUint32(out[ivfFrameCountOffset:ivfFrameCountOffset+4], w.frameCount)
	return out, nil
}

// Config returns the decoder configuration the header was written from.
func (w *IVFWriter) Config() *DecoderConfig {
	return w.config
}

// ivfFourCC maps a codec string to its IVF FourCC.
func ivfFourCC(codec string) []byte {
	switch codecFamily(codec) {
	case "avc1", "h264":
		return []byte("H264")
	case CodecMJPEG:
		return []byte("MJPG")
	case "vp8", "vp08":
		return []byte("VP80")
	case "vp9", "vp09":
		return []byte("VP90")
	case "av01":
		return []byte("AV01")
	default:
		cc := strings.ToUpper(codecFamily(codec)) + "    "
		return []byte(cc[:4])
	}
}
