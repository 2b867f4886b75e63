package video

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
)

// Kind selects how a target is opened.
type Kind string

// Source kinds.
const (
	KindAuto     Kind = "auto"
	KindFile     Kind = "file"
	KindCapture  Kind = "capture"
	KindSequence Kind = "sequence"
	KindImage    Kind = "image"
)

// Playable is a Source that can be played, paused and closed.
type Playable interface {
	Source
	Pause()
	Resume()
	Run(ctx context.Context) error
	Close() error
}

// OpenOptions configures Open.
type OpenOptions struct {
	Kind Kind
	// FPS is the playback rate of image sequences.
	FPS float64
	// Loop restarts files and sequences when they end.
	Loop   bool
	Logger logging.Logger
}

// DetectKind guesses the kind of target: device indexes and URLs are captured, directories
// are sequences, image extensions are stills and anything else is a video file.
func DetectKind(target string) Kind {
	if _, err := strconv.Atoi(target); err == nil || strings.Contains(target, "://") {
		return KindCapture
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return KindSequence
	}
	if _, ok := images.FormatFromPath(target); ok {
		return KindImage
	}
	return KindFile
}

// Open opens target as a Playable source.
func Open(target string, opts OpenOptions) (Playable, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	kind := opts.Kind
	if kind == "" || kind == KindAuto {
		kind = DetectKind(target)
	}

	switch kind {
	case KindCapture:
		return OpenCapture(target, opts.Logger)
	case KindSequence:
		return OpenSequence(target, opts.FPS, WithSequenceLoop(opts.Loop), WithSequenceLogger(opts.Logger))
	case KindImage:
		return openImage(target)
	case KindFile:
		return OpenFile(target, WithLoop(opts.Loop), WithFileLogger(opts.Logger))
	default:
		return nil, errors.Errorf("unknown source kind %q", kind)
	}
}

func openImage(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	format, _ := images.FormatFromPath(path)

	img, err := (&images.Image{Format: format, Data: data}).Decode()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return NewStaticSource(img), nil
}
