package capture

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Kind is the media a device records.
type Kind string

const KindAudio Kind = "audio"

var (
	// ErrDeviceBusy is returned by Acquire while another session holds the device.
	ErrDeviceBusy = errors.New("capture device already in use")
	// ErrPermissionDenied is returned by Acquire when access is refused.
	ErrPermissionDenied = errors.New("capture permission denied")
)

// Device grants exclusive access to a recording device.
type Device interface {
	Acquire(ctx context.Context, kind Kind) (Handle, error)
}

// Handle is an acquired device.
//
// Chunks delivers recorded data in order. It is closed after Release, once any
// final chunk has been delivered, or earlier when the source runs out.
// Err delivers a device failure while recording.
// Release frees the device; it must be safe to call more than once.
type Handle interface {
	MimeType() string
	Chunks() <-chan []byte
	Err() <-chan error
	Release() error
}

// ReaderDevice is a Device backed by an io.Reader, such as a recorded file
// or a named pipe fed by a live recorder.
// The reader is consumed in chunkSize pieces; its end closes the chunk stream.
// Release ends the stream at once, even while a Read is blocked, and closes
// the reader if it is an io.Closer.
type ReaderDevice struct {
	r         io.Reader
	mime      string
	chunkSize int

	mu    sync.Mutex
	inUse bool

	readMu sync.Mutex // serializes Read across handles
}

// NewReaderDevice creates a ReaderDevice. chunkSize <= 0 uses 32 KiB.
func NewReaderDevice(r io.Reader, mime string, chunkSize int) *ReaderDevice {
	if chunkSize <= 0 {
		chunkSize = 32 << 10
	}
	return &ReaderDevice{r: r, mime: mime, chunkSize: chunkSize}
}

// Acquire starts streaming the reader. Only one handle may be active at a time.
func (d *ReaderDevice) Acquire(ctx context.Context, kind Kind) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind != KindAudio {
		return nil, errors.New("reader device only records audio")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUse {
		return nil, ErrDeviceBusy
	}
	d.inUse = true

	h := &readerHandle{
		device: d,
		chunks: make(chan []byte),
		errs:   make(chan error),
		stop:   make(chan struct{}),
	}
	go h.pump()
	return h, nil
}

type readerHandle struct {
	device *ReaderDevice
	chunks chan []byte
	errs   chan error
	stop   chan struct{}
	once   sync.Once
}

func (h *readerHandle) MimeType() string      { return h.device.mime }
func (h *readerHandle) Chunks() <-chan []byte { return h.chunks }
func (h *readerHandle) Err() <-chan error     { return h.errs }

func (h *readerHandle) Release() error {
	var err error
	h.once.Do(func() {
		close(h.stop)
		if c, ok := h.device.r.(io.Closer); ok {
			err = c.Close()
		}
		h.device.mu.Lock()
		h.device.inUse = false
		h.device.mu.Unlock()
	})
	return err
}

type readResult struct {
	data []byte
	err  error
}

// pump forwards reads to the chunk stream. It never blocks on the reader
// itself, so Release closes the stream promptly.
func (h *readerHandle) pump() {
	defer close(h.chunks)

	reads := make(chan readResult)
	go h.read(reads)

	for {
		var r readResult
		select {
		case r = <-reads:
		case <-h.stop:
			return
		}

		if len(r.data) > 0 {
			select {
			case h.chunks <- r.data:
			case <-h.stop:
				return
			}
		}
		if r.err == io.EOF {
			return
		}
		if r.err != nil {
			select {
			case h.errs <- r.err:
			case <-h.stop:
			}
			return
		}
	}
}

// read runs the blocking reads. It exits on the first error or once the
// handle is released.
func (h *readerHandle) read(out chan<- readResult) {
	buf := make([]byte, h.device.chunkSize)
	for {
		h.device.readMu.Lock()
		n, err := h.device.r.Read(buf)
		h.device.readMu.Unlock()

		r := readResult{err: err}
		if n > 0 {
			r.data = append([]byte(nil), buf[:n]...)
		}
		select {
		case out <- r:
		case <-h.stop:
			return
		}
		if err != nil {
			return
		}
	}
}
