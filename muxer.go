package vcam

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Mux lane errors.
var (
	ErrLaneFinalized   = errors.New("mux lane already finalized")
	ErrWritesPending   = errors.New("mux operations still pending")
	ErrNoDecoderConfig = errors.New("no decoder config before first write")
)

// ChunkRecord pairs an encoded chunk with an optional decoder
// configuration. The lane-level configuration set via SetDecoderConfig
// takes precedence; a record-level one serves callers feeding the lane
// directly.
type ChunkRecord struct {
	Chunk         *EncodedChunk
	DecoderConfig *DecoderConfig
}

// MuxLane receives encoded chunks and writes them asynchronously into a
// ContainerWriter. Chunks are re-sequenced by submission sequence number
// before writing, so emission order diverging from submission order cannot
// corrupt the output. All outstanding writes must settle (Wait) before
// Finalize; finalizing early would truncate the container.
type MuxLane struct {
	writer ContainerWriter

	mu      sync.Mutex
	pending map[int64]*ChunkRecord
	skipped map[int64]struct{}
	next    int64
	config  *DecoderConfig

	headerWritten bool
	finalized     bool
	writeErr      error

	wg          sync.WaitGroup
	outstanding atomic.Int64

	chunksWritten atomic.Uint64

	log *logrus.Entry
}

// NewMuxLane creates a mux lane over the given container writer.
func NewMuxLane(writer ContainerWriter, log *logrus.Entry) *MuxLane {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MuxLane{
		writer:  writer,
		pending: make(map[int64]*ChunkRecord),
		skipped: make(map[int64]struct{}),
		log:     log,
	}
}

// SetDecoderConfig supplies the configuration the container header is
// written from. It must be set (or carried by a record) before the first
// in-sequence record is written; chunks can arrive out of submission order,
// so the header source cannot be tied to arrival order.
func (l *MuxLane) SetDecoderConfig(config *DecoderConfig) {
	l.mu.Lock()
	if l.config == nil {
		l.config = config
	}
	l.mu.Unlock()
}

// Add queues one record for writing. It returns immediately; the write runs
// concurrently with subsequent Add calls and with the orchestrator's
// forward progress.
func (l *MuxLane) Add(rec *ChunkRecord) {
	l.wg.Add(1)
	l.outstanding.Add(1)
	go func() {
		l.mu.Lock()
		l.pending[rec.Chunk.Sequence] = rec
		l.drainLocked()
		l.mu.Unlock()
	}()
}

// Skip marks a sequence slot as permanently absent (the encoder dropped the
// frame) so re-sequencing can advance past it.
func (l *MuxLane) Skip(sequence int64) {
	l.mu.Lock()
	l.skipped[sequence] = struct{}{}
	l.drainLocked()
	l.mu.Unlock()
}

// drainLocked writes every consecutive record starting at next. Callers
// hold l.mu, which also serializes the underlying writer.
func (l *MuxLane) drainLocked() {
	for {
		if _, ok := l.skipped[l.next]; ok {
			delete(l.skipped, l.next)
			l.next++
			continue
		}
		rec, ok := l.pending[l.next]
		if !ok {
			return
		}
		delete(l.pending, l.next)
		l.next++
		l.writeLocked(rec)
		l.outstanding.Add(-1)
		l.wg.Done()
	}
}

// writeLocked writes one record. Write failures are logged and retained as
// the lane's first error; they never abort the export, though the container
// may come out incomplete.
func (l *MuxLane) writeLocked(rec *ChunkRecord) {
	if !l.headerWritten {
		config := l.config
		if config == nil {
			config = rec.DecoderConfig
		}
		if config == nil {
			l.recordErrLocked(ErrNoDecoderConfig)
			return
		}
		if err := l.writer.WriteHeader(config); err != nil {
			l.recordErrLocked(err)
			return
		}
		l.headerWritten = true
	}

	if err := l.writer.WriteChunk(rec.Chunk); err != nil {
		l.recordErrLocked(err)
		return
	}
	l.chunksWritten.Add(1)
}

func (l *MuxLane) recordErrLocked(err error) {
	l.log.WithError(err).Error("mux write failed")
	if l.writeErr == nil {
		l.writeErr = err
	}
}

// Wait blocks until every added record has been written, then returns the
// first write error, if any.
func (l *MuxLane) Wait() error {
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeErr
}

// Outstanding returns the number of added-but-unwritten records.
func (l *MuxLane) Outstanding() int64 {
	return l.outstanding.Load()
}

// ChunksWritten returns the number of records written to the container.
func (l *MuxLane) ChunksWritten() uint64 {
	return l.chunksWritten.Load()
}

// Finalize closes the container and returns its bytes. It must be called
// exactly once, after Wait; calling it with writes pending is an error
// rather than a truncated file.
func (l *MuxLane) Finalize() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return nil, ErrLaneFinalized
	}
	if l.outstanding.Load() != 0 {
		return nil, ErrWritesPending
	}
	l.finalized = true
	return l.writer.Finalize()
}
