// Package planes provides transforms on raw planar yuv420p buffers.
//
// A packed buffer stores the luma plane (w*h bytes) followed by the Cb and Cr
// planes ((w/2)*(h/2) bytes each) with no row padding. Decoders usually hand
// out strided planes; Extract and Write convert between the two layouts.
//
// Frame dimensions are expected to be even. Odd sizes are rejected by the
// scaler and rounded down by the geometry helpers.
package planes
