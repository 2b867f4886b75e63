package video

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/util"
	"github.com/pkg/errors"
)

// ErrNoFrames is returned when a sequence directory holds no images.
var ErrNoFrames = errors.New("no frames found")

// SequenceSource plays a directory of numbered still images as a video.
type SequenceSource struct {
	*Player

	dir      string
	frames   []image.Image
	next     int
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger
	loop     bool
}

// SequenceOption configures a SequenceSource.
type SequenceOption func(*SequenceSource)

// WithSequenceClock overrides the clock driving playback.
func WithSequenceClock(c clock.Clock) SequenceOption {
	return func(s *SequenceSource) {
		s.clock = c
	}
}

// WithSequenceLoop restarts the sequence when it ends.
func WithSequenceLoop(loop bool) SequenceOption {
	return func(s *SequenceSource) {
		s.loop = loop
	}
}

// WithSequenceLogger sets the logger.
func WithSequenceLogger(logger logging.Logger) SequenceOption {
	return func(s *SequenceSource) {
		s.logger = logger
	}
}

// OpenSequence loads and decodes every frame in dir.
//
// Arguments:
//   - dir: A directory of "frame-<n>.<ext>" or "<n>.<ext>" images.
//   - fps: The playback rate. Values <= 0 use DefaultFPS.
//   - opts: Optional overrides.
//
// Returns:
//   - *SequenceSource: The source, not yet playing. Call Run to play it.
//   - error: ErrNoFrames for an empty directory, or the first load or decode error.
func OpenSequence(dir string, fps float64, opts ...SequenceOption) (*SequenceSource, error) {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrap(ErrNoFrames, dir)
	}

	frames := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := f.Image().Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", f.Path)
		}
		frames = append(frames, img)
	}

	return NewSequenceSource(dir, frames, fps, opts...), nil
}

// NewSequenceSource plays already decoded frames.
func NewSequenceSource(name string, frames []image.Image, fps float64, opts ...SequenceOption) *SequenceSource {
	if fps <= 0 {
		fps = DefaultFPS
	}

	s := &SequenceSource{
		Player:   NewPlayer(),
		dir:      name,
		frames:   frames,
		interval: time.Duration(float64(time.Second) / fps),
		clock:    clock.New(),
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of frames in the sequence.
func (s *SequenceSource) Len() int {
	return len(s.frames)
}

// Run plays the sequence until it ends or ctx is cancelled.
func (s *SequenceSource) Run(ctx context.Context) error {
	if !s.advance() {
		return nil
	}

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.Paused() {
				continue
			}
			if !s.advance() {
				return nil
			}
		}
	}
}

func (s *SequenceSource) advance() bool {
	if s.next >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			s.MarkEnded()
			s.logger.Infow("sequence ended", "dir", s.dir, "frames", len(s.frames))
			return false
		}
		s.next = 0
	}

	s.Publish(s.frames[s.next])
	s.next++
	return true
}

// Close does nothing.
func (s *SequenceSource) Close() error {
	return nil
}
