package signaling

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg" // screenshots and photos
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"

	"github.com/1ureka/janken/internal/codec"
	"github.com/1ureka/janken/internal/util"
)

// ErrScannerRunning is returned by Start while a scan is in progress.
var ErrScannerRunning = errors.New("scanner already running")

// FrameSource produces images to scan. A nil image with a nil error is an
// empty frame. io.EOF ends the scan.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// Scanner reads frames until one holds a valid link of the expected kind.
type Scanner struct {
	src  FrameSource
	kind Kind

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScanner creates a scanner looking for links of the given kind.
func NewScanner(src FrameSource, kind Kind) *Scanner {
	return &Scanner{src: src, kind: kind}
}

// Start scans in the background. onResult receives the first valid packet,
// after which scanning ends. Frames without a QR code are skipped silently;
// a QR code that is not a valid link of the expected kind is reported to
// onInvalid once per distinct text and scanning continues.
func (s *Scanner) Start(ctx context.Context, onResult func(codec.Packet), onInvalid func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrScannerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		defer s.finish(done)
		s.run(ctx, onResult, onInvalid)
	}()

	return nil
}

// Stop ends a running scan. It is a no-op if no scan is running and may be
// called any number of times. No callback runs once the scan goroutine has
// observed the stop.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed when the current scan ends. It returns a closed channel
// when no scan is running.
func (s *Scanner) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// finish clears the running scan if it is still the one that ended.
func (s *Scanner) finish(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == done {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scanner) run(ctx context.Context, onResult func(codec.Packet), onInvalid func(error)) {
	var lastInvalid string

	for {
		img, err := s.src.NextFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogWarning("QR scan stopped: %v", err)
			}
			return
		}
		if img == nil {
			continue
		}

		text, err := DecodeImage(img)
		if err != nil {
			continue
		}

		pkt, err := ParseURLFor(text, s.kind)
		if err != nil {
			if text != lastInvalid && ctx.Err() == nil && onInvalid != nil {
				lastInvalid = text
				onInvalid(err)
			}
			continue
		}

		if ctx.Err() != nil {
			return
		}
		util.LogDebug("QR code with %s decoded", s.kind)
		onResult(pkt)
		return
	}
}

// FileFrames reads image files as frames, cycling through the paths at a
// fixed interval. Missing or unreadable files are empty frames, so a
// screenshot can be dropped in while the scan runs.
type FileFrames struct {
	paths    []string
	interval time.Duration
	next     int
}

// NewFileFrames creates a frame source over the given image files.
func NewFileFrames(interval time.Duration, paths ...string) *FileFrames {
	return &FileFrames{paths: paths, interval: interval}
}

// NextFrame implements FrameSource.
func (f *FileFrames) NextFrame(ctx context.Context) (image.Image, error) {
	if len(f.paths) == 0 {
		return nil, io.EOF
	}

	if f.next > 0 && f.interval > 0 {
		t := time.NewTimer(f.interval)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	path := f.paths[f.next%len(f.paths)]
	f.next++

	file, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		util.LogDebug("skipping %s: %v", path, err)
		return nil, nil
	}
	return img, nil
}
