// Package video provides the frames the overlay runs detection on, together with the
// playback state that gates the scheduler.
package video

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// Source is the playing video as seen by the scheduler.
type Source interface {
	// Ready is closed once the first frame is available.
	Ready() <-chan struct{}
	// Frame returns the frame currently displayed, or false if there is none yet.
	Frame() (image.Image, bool)
	// Paused reports whether playback is paused.
	Paused() bool
	// Ended reports whether playback reached the end of the media.
	Ended() bool
	// Size returns the intrinsic dimensions of the current frame.
	Size() image.Point
}

// Player is the shared playback state behind every Source.
//
// Published frames are handed out as-is, so a publisher must not modify a frame once
// published.
type Player struct {
	mu    sync.RWMutex
	frame image.Image
	count int64

	ready     chan struct{}
	readyOnce sync.Once

	paused atomic.Bool
	ended  atomic.Bool
}

// NewPlayer creates a Player with no frame.
func NewPlayer() *Player {
	return &Player{ready: make(chan struct{})}
}

// Publish makes frame the current frame. The first publish marks the player ready.
func (p *Player) Publish(frame image.Image) {
	if frame == nil {
		return
	}

	p.mu.Lock()
	p.frame = frame
	p.count++
	p.mu.Unlock()

	p.readyOnce.Do(func() { close(p.ready) })
}

// Ready is closed once the first frame has been published.
func (p *Player) Ready() <-chan struct{} {
	return p.ready
}

// Frame returns the most recently published frame.
func (p *Player) Frame() (image.Image, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.frame != nil
}

// Published returns the number of frames published so far.
func (p *Player) Published() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// Size returns the bounds size of the current frame.
func (p *Player) Size() image.Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.frame == nil {
		return image.Point{}
	}
	return p.frame.Bounds().Size()
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.paused.Store(true)
}

// Resume resumes playback.
func (p *Player) Resume() {
	p.paused.Store(false)
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	return p.paused.Load()
}

// MarkEnded records that playback reached the end of the media.
func (p *Player) MarkEnded() {
	p.ended.Store(true)
}

// Rewind clears the ended flag.
func (p *Player) Rewind() {
	p.ended.Store(false)
}

// Ended reports whether playback has ended.
func (p *Player) Ended() bool {
	return p.ended.Load()
}

// StaticSource is a Source showing a single image forever.
type StaticSource struct {
	*Player
}

// NewStaticSource creates a ready StaticSource showing img.
func NewStaticSource(img image.Image) *StaticSource {
	s := &StaticSource{Player: NewPlayer()}
	s.Publish(img)
	return s
}

// Close does nothing.
func (s *StaticSource) Close() error {
	return nil
}

// Run blocks until ctx is done.
func (s *StaticSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
