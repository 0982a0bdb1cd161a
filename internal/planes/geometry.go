package planes

import "image"

// Even rounds n down to the nearest even number, never below 2.
func Even(n int) int {
	n &^= 1
	if n < 2 {
		return 2
	}
	return n
}

// FitWidth returns output dimensions that keep the source aspect ratio and
// are no wider than maxW. Sources narrower than maxW keep their size.
func FitWidth(srcW, srcH, maxW int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if maxW <= 0 || srcW <= maxW {
		return Even(srcW), Even(srcH)
	}
	h := int(float64(srcH)*float64(maxW)/float64(srcW) + 0.5)
	return Even(maxW), Even(h)
}

// CenterCrop returns the largest rectangle with the dstW:dstH aspect ratio
// centered inside a srcW x srcH frame. Coordinates are even so the same
// rectangle halved addresses the chroma planes.
func CenterCrop(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	cropW, cropH := srcW, srcH
	if srcW*dstH > dstW*srcH {
		cropW = srcH * dstW / dstH
	} else {
		cropH = srcW * dstH / dstW
	}
	cropW = min(Even(cropW), srcW&^1)
	cropH = min(Even(cropH), srcH&^1)
	x0 := ((srcW - cropW) / 2) &^ 1
	y0 := ((srcH - cropH) / 2) &^ 1
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}
