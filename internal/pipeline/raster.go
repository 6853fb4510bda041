package pipeline

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// pwgSyncWord marks the start of a PWG-raster stream ("RaS2"); the page
// headers that follow are read big-endian.
var pwgSyncWord = [4]byte{'R', 'a', 'S', '2'}

// PageHeader carries the per-page geometry and colorspace fields this
// pipeline validates before streaming lines (spec.md §4.E).
type PageHeader struct {
	Width        int
	Height       int
	BitsPerColor int
	ColorOrder   string
	ColorSpace   string
	BytesPerLine int
}

const (
	colorOrderChunked = "chunked"
	colorSpaceK       = "black"
)

// ValidatePageHeader enforces spec.md §4.E's page-header invariants:
// cupsWidth/cupsHeight, bits-per-color in {1,8}, chunked color order,
// and a consistent bytes-per-line.
func ValidatePageHeader(h *PageHeader) error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: page header has non-positive dimensions %dx%d", ippcore.ErrDriverError, h.Width, h.Height)
	}
	if h.BitsPerColor != 1 && h.BitsPerColor != 8 {
		return fmt.Errorf("%w: unsupported cupsBitsPerColor %d", ippcore.ErrDriverError, h.BitsPerColor)
	}
	if h.ColorOrder != colorOrderChunked {
		return fmt.Errorf("%w: unsupported cupsColorOrder %q", ippcore.ErrDriverError, h.ColorOrder)
	}
	expected := (h.Width*h.BitsPerColor + 7) / 8
	if h.BytesPerLine != expected {
		return fmt.Errorf("%w: cupsBytesPerLine %d does not match width*bpp/8 %d", ippcore.ErrDriverError, h.BytesPerLine, expected)
	}
	return nil
}

// wireHeader is the fixed-size on-wire page header this pipeline reads:
// a minimal projection of the PWG/CUPS raster page header onto the
// fields spec.md §4.E actually validates.
type wireHeader struct {
	Width        uint32
	Height       uint32
	BitsPerColor uint32
	Chunked      uint32 // 1 = chunked, 0 = planar
	ColorSpaceK  uint32 // 1 = K (black), 0 = grayscale/other
	BytesPerLine uint32
}

func readWireHeader(r io.Reader) (*PageHeader, error) {
	var wh wireHeader
	if err := binary.Read(r, binary.BigEndian, &wh); err != nil {
		return nil, err
	}
	order := colorOrderChunked
	if wh.Chunked == 0 {
		order = "planar"
	}
	space := "sgray"
	if wh.ColorSpaceK == 1 {
		space = colorSpaceK
	}
	return &PageHeader{
		Width:        int(wh.Width),
		Height:       int(wh.Height),
		BitsPerColor: int(wh.BitsPerColor),
		ColorOrder:   order,
		ColorSpace:   space,
		BytesPerLine: int(wh.BytesPerLine),
	}, nil
}

// StreamRaster reads a PWG-raster stream and drives drv through
// RStartJob/RStartPage/RWriteLine/REndPage/REndJob, dithering 8-bit
// input down to 1-bit output when the driver requires it (spec.md
// §4.E). cancel is polled between pages; when it reports true the
// stream stops at the next page boundary.
func StreamRaster(r io.Reader, opts *JobOptions, drv Driver, cancel func() bool) error {
	br := bufio.NewReader(r)

	var sync [4]byte
	if _, err := io.ReadFull(br, sync[:]); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: reading raster sync word: %v", ippcore.ErrDriverError, err)
	}
	if sync != pwgSyncWord {
		return fmt.Errorf("%w: unrecognized raster sync word", ippcore.ErrUnsupportedFormat)
	}

	if drv.RStartJob != nil {
		if err := drv.RStartJob(opts); err != nil {
			return err
		}
	}
	defer func() {
		if drv.REndJob != nil {
			drv.REndJob()
		}
	}()

	for {
		if cancel != nil && cancel() {
			return nil
		}

		header, err := readWireHeader(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading page header: %v", ippcore.ErrDriverError, err)
		}
		if err := ValidatePageHeader(header); err != nil {
			return err
		}

		if err := streamPage(br, header, opts, drv); err != nil {
			return err
		}
	}
}

func streamPage(r io.Reader, header *PageHeader, opts *JobOptions, drv Driver) error {
	if drv.RStartPage != nil {
		if err := drv.RStartPage(opts, header); err != nil {
			return err
		}
	}

	outBPL := driverBytesPerLine(header, drv)
	needsDither := header.BitsPerColor == 8 && drv.BitsPerColor == 1
	matrix := SelectDitherMatrix(opts, drv)

	inLine := make([]byte, header.BytesPerLine)
	for y := 0; y < header.Height; y++ {
		_, err := io.ReadFull(r, inLine)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// Missing trailing lines are padded identically to the
			// width-padding rule (spec.md §4.E).
			for i := range inLine {
				inLine[i] = blankByte(header.ColorSpace)
			}
		} else if err != nil {
			return fmt.Errorf("%w: reading raster line %d: %v", ippcore.ErrDriverError, y, err)
		}

		var outLine []byte
		if needsDither {
			outLine = DitherLine(inLine, header, matrix, y)
		} else {
			outLine = padLine(inLine, outBPL, header.ColorSpace)
		}

		if drv.RWriteLine != nil {
			if err := drv.RWriteLine(opts, y, outLine); err != nil {
				return err
			}
		}
	}

	if drv.REndPage != nil {
		return drv.REndPage(opts)
	}
	return nil
}

// RasterFilter adapts StreamRaster to the FilterFunc signature for
// registration in a Table under (src, image/pwg-raster) (spec.md
// §4.E). The device writer is ignored: raster output flows through
// drv.RWriteLine, which the caller wires to the open device handle.
func RasterFilter(_ io.Writer, r io.Reader, opts *JobOptions, drv Driver, cancel func() bool) error {
	return StreamRaster(r, opts, drv, cancel)
}

func driverBytesPerLine(header *PageHeader, drv Driver) int {
	bpc := drv.BitsPerColor
	if bpc == 0 {
		bpc = header.BitsPerColor
	}
	return (header.Width*bpc + 7) / 8
}

// padLine extends a line to width bytes, padding with white (0xFF) for
// non-K colorspaces or black (0x00) for K (spec.md §4.E).
func padLine(line []byte, width int, colorSpace string) []byte {
	if len(line) >= width {
		return line[:width]
	}
	out := make([]byte, width)
	copy(out, line)
	pad := blankByte(colorSpace)
	for i := len(line); i < width; i++ {
		out[i] = pad
	}
	return out
}

func blankByte(colorSpace string) byte {
	if colorSpace == colorSpaceK {
		return 0x00
	}
	return 0xFF
}
