package cbor

import (
	"io"
)

// defaultReadSize is the chunk size requested from a seekable source when
// the lookahead window runs dry.
const defaultReadSize = 4096

// byteSource is the backing of a bufReader: an io.Reader, plus its
// io.Seeker half when the reader supports repositioning.
type byteSource struct {
	r        io.Reader
	seekable io.Seeker // nil if r is not seekable
}

// bufReader is a rewindable byte window over a byteSource. It keeps the
// unconsumed region [pos, pos+avail) of a single allocation and refills
// from the source on demand.
type bufReader struct {
	src    *byteSource
	window []byte
	pos    int // start of the unconsumed region within window
	avail  int // number of unconsumed bytes available from pos
	// consumed tracks total bytes handed out via readExact/read, used for
	// error offsets.
	consumed int
}

// newBufReaderBytes constructs a bufReader directly over an in-memory
// buffer; no source refill is ever needed.
func newBufReaderBytes(b []byte) *bufReader {
	return &bufReader{window: b, avail: len(b)}
}

// newBufReader constructs a bufReader over an io.Reader. If r also
// implements io.Seeker, rewindExcess can un-consume look-ahead bytes at
// the end of a successful top-level decode.
func newBufReader(r io.Reader) *bufReader {
	seeker, _ := r.(io.Seeker)
	return &bufReader{src: &byteSource{r: r, seekable: seeker}}
}

// fill pulls more bytes into the window: max(need-available, readSize)
// of them, where readSize drops to 1 for non-seekable sources so that no
// byte past the last consumed byte is ever read from a source that
// cannot be rewound.
func (b *bufReader) fill(need int) error {
	if b.src == nil {
		return nil // pure in-memory buffer: whatever's there is all there is
	}
	readSize := defaultReadSize
	if b.src.seekable == nil {
		readSize = 1
	}
	want := need - b.avail
	if want < readSize {
		want = readSize
	}

	// Compact the window so unconsumed bytes start at 0, then grow.
	if b.pos > 0 {
		copy(b.window, b.window[b.pos:b.pos+b.avail])
		b.window = b.window[:b.avail]
		b.pos = 0
	}
	start := len(b.window)
	if cap(b.window)-start < want {
		grown := make([]byte, start, start+want)
		copy(grown, b.window)
		b.window = grown
	}
	b.window = b.window[:start+want]
	n, err := io.ReadFull(b.src.r, b.window[start:start+want])
	b.window = b.window[:start+n]
	b.avail += n
	if n < want {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil // caller decides whether n was enough
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readExact returns exactly n bytes, advancing the window, or fails with
// PrematureEOF if fewer are available from the source.
func (b *bufReader) readExact(n int) ([]byte, error) {
	if b.avail < n {
		if err := b.fill(n); err != nil {
			return nil, err
		}
	}
	if b.avail < n {
		got := b.avail
		b.pos += b.avail
		b.consumed += b.avail
		b.avail = 0
		return nil, &PrematureEOF{Expected: n, Received: got}
	}
	out := b.window[b.pos : b.pos+n]
	b.pos += n
	b.avail -= n
	b.consumed += n
	return out, nil
}

// read has the same contract as readExact; partial reads are treated
// identically to exact ones at this layer, so it is a direct alias kept
// distinct for call-site clarity.
func (b *bufReader) read(n int) ([]byte, error) {
	return b.readExact(n)
}

// readByte reads a single byte.
func (b *bufReader) readByte() (byte, error) {
	buf, err := b.readExact(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// peekByte returns the next byte without consuming it.
func (b *bufReader) peekByte() (byte, error) {
	if b.avail < 1 {
		if err := b.fill(1); err != nil {
			return 0, err
		}
	}
	if b.avail < 1 {
		return 0, &PrematureEOF{Expected: 1, Received: 0}
	}
	return b.window[b.pos], nil
}

// rewindExcess repositions a seekable source backward by the number of
// buffered-but-unconsumed bytes, so the source cursor points one byte
// past the last consumed CBOR byte. A no-op for non-seekable sources and
// for pure in-memory buffers.
func (b *bufReader) rewindExcess() error {
	if b.src == nil || b.src.seekable == nil || b.avail == 0 {
		return nil
	}
	_, err := b.src.seekable.Seek(-int64(b.avail), io.SeekCurrent)
	if err != nil {
		return err
	}
	b.pos += b.avail
	b.avail = 0
	return nil
}

// offset reports the number of bytes consumed so far, used for error
// reporting.
func (b *bufReader) offset() int {
	return b.consumed
}
