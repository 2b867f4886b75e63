package video

import (
	"context"
	"strconv"

	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// matReader is the part of gocv.VideoCapture used for capture.
type matReader interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// CaptureSource reads a live device or network stream through OpenCV.
//
// Live media keeps flowing while paused; frames read during a pause are dropped so the
// displayed frame stays put.
type CaptureSource struct {
	*Player

	target string
	reader matReader
	logger logging.Logger
}

// OpenCapture opens a capture device or stream.
//
// Arguments:
//   - target: A device index such as "0", or a file, RTSP or HLS URL.
//   - logger: The logger.
//
// Returns:
//   - *CaptureSource: The source, not yet reading. Call Run to start it.
//   - error: An error if the device or stream cannot be opened.
func OpenCapture(target string, logger logging.Logger) (*CaptureSource, error) {
	var device interface{} = target
	if id, err := strconv.Atoi(target); err == nil {
		device = id
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture %s", target)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("capture %s did not open", target)
	}

	return newCaptureSource(target, vc, logger), nil
}

func newCaptureSource(target string, reader matReader, logger logging.Logger) *CaptureSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CaptureSource{
		Player: NewPlayer(),
		target: target,
		reader: reader,
		logger: logger,
	}
}

// Run reads frames until the stream ends or ctx is cancelled.
func (s *CaptureSource) Run(ctx context.Context) error {
	mat := gocv.NewMat()
	defer mat.Close()

	s.logger.Infow("capturing", "target", s.target)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := s.reader.Read(&mat); !ok {
			s.MarkEnded()
			s.logger.Infow("capture ended", "target", s.target, "frames", s.Published())
			return nil
		}
		if mat.Empty() || s.Paused() {
			continue
		}

		frame, err := images.FromMat(mat)
		if err != nil {
			s.logger.Warnw("dropping frame", "target", s.target, "error", err)
			continue
		}
		s.Publish(frame)
	}
}

// Close releases the capture device.
func (s *CaptureSource) Close() error {
	return s.reader.Close()
}
