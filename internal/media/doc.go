// Package media reads and writes still images: frames saved from the
// timeline, poster thumbnails served over HTTP and imported stills.
//
// PNG is always written through the imaging package. JPEG and WebP go
// through libvips when InitVips has succeeded; JPEG falls back to imaging
// otherwise and WebP is unavailable.
package media
