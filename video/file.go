package video

import (
	"context"
	"time"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/benbjohnson/clock"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
)

// DefaultFPS is used when a file does not report its frame rate.
const DefaultFPS = 30.0

// frameReader is the part of vidio.Video used for playback.
type frameReader interface {
	Read() bool
	FrameBuffer() []byte
	Width() int
	Height() int
	FPS() float64
	Close()
}

type openFunc func() (frameReader, error)

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithFileClock overrides the clock driving playback.
func WithFileClock(c clock.Clock) FileOption {
	return func(s *FileSource) {
		s.clock = c
	}
}

// WithLoop restarts playback from the first frame when the file ends.
func WithLoop(loop bool) FileOption {
	return func(s *FileSource) {
		s.loop = loop
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(logger logging.Logger) FileOption {
	return func(s *FileSource) {
		s.logger = logger
	}
}

// FileSource plays a video file at its native frame rate.
type FileSource struct {
	*Player

	path     string
	open     openFunc
	reader   frameReader
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger
	loop     bool
}

// OpenFile opens a video file for playback. Frames are decoded by ffmpeg through Vidio.
//
// Arguments:
//   - path: The video file.
//   - opts: Optional overrides.
//
// Returns:
//   - *FileSource: The source, not yet playing. Call Run to play it.
//   - error: An error if the file cannot be opened.
func OpenFile(path string, opts ...FileOption) (*FileSource, error) {
	open := func() (frameReader, error) {
		v, err := vidio.NewVideo(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening video %s", path)
		}
		return v, nil
	}
	return newFileSource(path, open, opts...)
}

func newFileSource(path string, open openFunc, opts ...FileOption) (*FileSource, error) {
	s := &FileSource{
		Player: NewPlayer(),
		path:   path,
		open:   open,
		clock:  clock.New(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	reader, err := open()
	if err != nil {
		return nil, err
	}
	s.reader = reader

	fps := reader.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	s.interval = time.Duration(float64(time.Second) / fps)

	return s, nil
}

// FrameInterval returns the time between frames.
func (s *FileSource) FrameInterval() time.Duration {
	return s.interval
}

// Run plays the file until it ends or ctx is cancelled. While paused the current frame
// stays on screen.
func (s *FileSource) Run(ctx context.Context) error {
	s.logger.Infow("playing video", "path", s.path,
		"width", s.reader.Width(), "height", s.reader.Height(), "fps", s.reader.FPS())

	// Show the first frame straight away.
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

// advance publishes the next frame. It returns false once playback has ended.
func (s *FileSource) advance() bool {
	if s.reader.Read() {
		s.publishBuffer()
		return true
	}

	if !s.loop {
		s.MarkEnded()
		s.logger.Infow("video ended", "path", s.path, "frames", s.Published())
		return false
	}

	s.reader.Close()
	reader, err := s.open()
	if err != nil {
		s.logger.Errorw("reopening video", "path", s.path, "error", err)
		s.MarkEnded()
		return false
	}
	s.reader = reader

	if !s.reader.Read() {
		s.MarkEnded()
		return false
	}
	s.publishBuffer()
	return true
}

func (s *FileSource) publishBuffer() {
	frame, err := images.FromRGBABuffer(s.reader.FrameBuffer(), s.reader.Width(), s.reader.Height())
	if err != nil {
		s.logger.Warnw("dropping frame", "path", s.path, "error", err)
		return
	}
	s.Publish(frame)
}

// Close releases the decoder.
func (s *FileSource) Close() error {
	s.reader.Close()
	return nil
}
