package framecache

import "image"

// Frame is a displayable frame.
type Frame struct {
	Image *image.RGBA
	PTS   float64
}

// Current is the "on screen" slot: one frame per clip.
type Current struct {
	frames map[string]Frame
}

// NewCurrent creates an empty slot set.
func NewCurrent() *Current {
	return &Current{frames: make(map[string]Frame)}
}

// Set replaces the frame shown for clip.
func (c *Current) Set(clip string, f Frame) {
	c.frames[clip] = f
}

// Get returns the frame shown for clip.
func (c *Current) Get(clip string) (Frame, bool) {
	f, ok := c.frames[clip]
	return f, ok
}

// Remove drops the frame shown for clip.
func (c *Current) Remove(clip string) {
	delete(c.frames, clip)
}

// Len returns the number of clips with a frame.
func (c *Current) Len() int {
	return len(c.frames)
}
