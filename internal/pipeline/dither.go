package pipeline

// DitherMatrix is a 16x16 ordered-dither threshold matrix (spec.md
// §4.E). A zero matrix is treated as MidThreshold by SelectDitherMatrix.
type DitherMatrix [16][16]byte

// MidThreshold is the flat 127-everywhere matrix used for bi-level
// content and draft quality (spec.md §4.E).
var MidThreshold = func() DitherMatrix {
	var m DitherMatrix
	for y := range m {
		for x := range m[y] {
			m[y][x] = 127
		}
	}
	return m
}()

func isZeroMatrix(m DitherMatrix) bool {
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// SelectDitherMatrix implements spec.md §4.E's per-page matrix choice:
// bi-level/draft quality uses MidThreshold; photo content or high
// quality uses the driver's photo matrix; otherwise the driver's generic
// matrix (falling back to MidThreshold if the driver supplied none). The
// document's source format plays no part in the choice.
func SelectDitherMatrix(opts *JobOptions, drv Driver) DitherMatrix {
	if opts.ContentOptimize == "text" || opts.Quality == "draft" {
		return MidThreshold
	}
	if opts.ContentOptimize == "photo" || opts.Quality == "high" {
		if !isZeroMatrix(drv.PhotoDither) {
			return drv.PhotoDither
		}
		return MidThreshold
	}
	if !isZeroMatrix(drv.GenericDither) {
		return drv.GenericDither
	}
	return MidThreshold
}

// DitherLine reduces one 8-bit-per-pixel input line to a 1-bit packed
// output line using matrix, per spec.md §4.E: for K-space input a pixel
// exceeding the threshold becomes black; for grayscale, a pixel at or
// below the threshold becomes black. Output bit 1 means black ink;
// bits are packed MSB-first.
func DitherLine(inLine []byte, header *PageHeader, matrix DitherMatrix, y int) []byte {
	width := header.Width
	isK := header.ColorSpace == colorSpaceK
	out := make([]byte, (width+7)/8)

	for x := 0; x < width; x++ {
		pixel := blankByte(header.ColorSpace)
		if x < len(inLine) {
			pixel = inLine[x]
		}
		threshold := matrix[y%16][x%16]

		var black bool
		if isK {
			black = pixel > threshold
		} else {
			black = pixel <= threshold
		}
		if black {
			out[x/8] |= 1 << uint(7-(x%8))
		}
	}
	return out
}
