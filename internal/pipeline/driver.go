package pipeline

import "github.com/WaffleThief123/ippframework/internal/ippcore"

// JobOptions are the print options a filter and driver see (spec.md
// §4.E): copies, finishings, media, orientation, bin, page-ranges,
// color-mode, content-optimize, darkness, quality, scaling, speed,
// resolution, sides, plus vendor extensions. See OptionsFromAttributes
// for which of them are filled in from the job.
type JobOptions struct {
	Copies          int
	Finishings      []string
	Media           string
	Orientation     int
	Bin             string
	PageRanges      [][2]int
	ColorMode       string
	ContentOptimize string
	Darkness        int
	Quality         string
	Scaling         int
	Speed           int
	ResolutionX     int
	ResolutionY     int
	Sides           string
	Vendor          *ippcore.Attributes
}

// OptionsFromAttributes builds JobOptions from a job's IPP attribute
// container (spec.md §4.E). It reads copies, media, print-color-mode,
// print-content-optimize, print-quality, sides and output-bin; the
// other fields keep their defaults. The scheduler calls it once per
// document, and the same options apply to every page of that document.
func OptionsFromAttributes(attrs *ippcore.Attributes) *JobOptions {
	opts := &JobOptions{
		Copies:          1,
		Media:           "na_letter_8.5x11in",
		ColorMode:       "monochrome",
		ContentOptimize: "auto",
		Quality:         "normal",
		ResolutionX:     300,
		ResolutionY:     300,
		Sides:           "one-sided",
		Vendor:          ippcore.NewAttributes(),
	}
	if c := attrs.GetInt("copies"); c > 0 {
		opts.Copies = c
	}
	if m := attrs.GetString("media"); m != "" {
		opts.Media = m
	}
	if cm := attrs.GetString("print-color-mode"); cm != "" {
		opts.ColorMode = cm
	}
	if co := attrs.GetString("print-content-optimize"); co != "" {
		opts.ContentOptimize = co
	}
	if q := attrs.GetString("print-quality"); q != "" {
		opts.Quality = q
	}
	if s := attrs.GetString("sides"); s != "" {
		opts.Sides = s
	}
	if b := attrs.GetString("output-bin"); b != "" {
		opts.Bin = b
	}
	return opts
}

// Driver bundles the per-printer capability callbacks a raster stream
// is bracketed by (spec.md GLOSSARY "Driver data").
type Driver struct {
	// Format is the driver's native document format, used as the
	// destination side of filter dispatch (spec.md §4.E). Empty means
	// the driver accepts whatever format the job was submitted in
	// (raw pass-through).
	Format string

	RStartJob  func(opts *JobOptions) error
	RStartPage func(opts *JobOptions, page *PageHeader) error
	RWriteLine func(opts *JobOptions, y int, line []byte) error
	REndPage   func(opts *JobOptions) error
	REndJob    func() error

	// BitsPerColor is the driver's native output depth: 1 for pure
	// bilevel drivers (triggers dithering from 8-bit input), 8 to pass
	// grayscale/color through unmodified.
	BitsPerColor int

	// PhotoDither and GenericDither are the driver-supplied 16x16
	// threshold matrices selected per spec.md §4.E's content-optimize
	// rule. A zero matrix falls back to MidThreshold.
	PhotoDither   DitherMatrix
	GenericDither DitherMatrix
}
