// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package images checks PNG figures extracted from source documents and
// maintains the numbering of their catalogs.
package images

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultBlackThreshold is the mean brightness below which an image is
// treated as a failed extraction.
const DefaultBlackThreshold = 5.0

// Brightness is the mean grayscale value of one image.
type Brightness struct {
	Name string
	Mean float64
	Size int64
}

// DecodeError records an image that could not be read.
type DecodeError struct {
	Name string
	Err  error
}

// Analysis groups the PNG files of a directory by brightness.
type Analysis struct {
	Black  []Brightness
	Valid  []Brightness
	Errors []DecodeError
}

// Total is the number of decoded images.
func (a Analysis) Total() int { return len(a.Black) + len(a.Valid) }

// SuccessRate is the percentage of decoded images that are not black.
func (a Analysis) SuccessRate() float64 {
	if a.Total() == 0 {
		return 0
	}
	return float64(len(a.Valid)) / float64(a.Total()) * 100
}

// HasFailures reports whether any image was black or unreadable.
func (a Analysis) HasFailures() bool { return len(a.Black) > 0 || len(a.Errors) > 0 }

// Analyze decodes every PNG in dir concurrently and classifies it as black
// when its mean brightness is below threshold. Workers bounds concurrency;
// zero uses GOMAXPROCS.
func Analyze(ctx context.Context, dir string, threshold float64, workers int) (Analysis, error) {
	names, err := pngFiles(dir, false)
	if err != nil {
		return Analysis{}, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Brightness, len(names))
	errs := make([]error, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			mean, err := meanBrightness(path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = Brightness{Name: name, Mean: mean, Size: fileSize(path)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Analysis{}, fmt.Errorf("analyzing %s: %w", dir, err)
	}

	var a Analysis
	for i, name := range names {
		switch {
		case errs[i] != nil:
			a.Errors = append(a.Errors, DecodeError{Name: name, Err: errs[i]})
		case results[i].Mean < threshold:
			a.Black = append(a.Black, results[i])
		default:
			a.Valid = append(a.Valid, results[i])
		}
	}
	return a, nil
}

// WriteText prints the analysis.
func (a Analysis) WriteText(w io.Writer, dir string) {
	fmt.Fprintf(w, "Image analysis for %s\n", dir)
	if len(a.Black) > 0 {
		fmt.Fprintf(w, "\nBlack images (%d):\n", len(a.Black))
		for _, b := range a.Black {
			fmt.Fprintf(w, "  %s (brightness: %.2f)\n", b.Name, b.Mean)
		}
	}
	fmt.Fprintf(w, "\nValid images (%d):\n", len(a.Valid))
	for _, b := range a.Valid {
		fmt.Fprintf(w, "  %s (brightness: %.2f, %.1fKB)\n", b.Name, b.Mean, float64(b.Size)/1024)
	}
	if len(a.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(a.Errors))
		for _, e := range a.Errors {
			fmt.Fprintf(w, "  %s: %v\n", e.Name, e.Err)
		}
	}
	fmt.Fprintf(w, "\nTotal images: %d\n", a.Total())
	fmt.Fprintf(w, "Failed extractions: %d\n", len(a.Black))
	fmt.Fprintf(w, "Success rate: %.1f%%\n", a.SuccessRate())
}

// meanBrightness converts the image to 8-bit luma and averages it.
func meanBrightness(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decoding: %w", err)
	}
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0, nil
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += uint64(luma(img.At(x, y)))
		}
	}
	return float64(sum) / float64(n), nil
}

// luma applies the ITU-R 601 weights to the straight (non-premultiplied)
// colour, so transparent pixels keep their colour value. 16-bit grey is
// read as an integer sample and clipped to 255, not rescaled.
func luma(c color.Color) uint8 {
	switch v := c.(type) {
	case color.Gray:
		return v.Y
	case color.Gray16:
		if v.Y > 255 {
			return 255
		}
		return uint8(v.Y)
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint8((19595*uint32(n.R) + 38470*uint32(n.G) + 7471*uint32(n.B) + 1<<15) >> 16)
}

// Dimension is the pixel size and file size of one image.
type Dimension struct {
	Name   string
	Width  int
	Height int
	SizeKB float64
}

// Dimensions reads the header of every PNG in dir except *_BACKUP.png
// files. Unreadable files are returned as errors alongside the rest.
func Dimensions(dir string) ([]Dimension, []DecodeError, error) {
	names, err := pngFiles(dir, true)
	if err != nil {
		return nil, nil, err
	}
	var (
		dims []Dimension
		bad  []DecodeError
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		cfg, err := decodeConfig(path)
		if err != nil {
			bad = append(bad, DecodeError{Name: name, Err: err})
			continue
		}
		dims = append(dims, Dimension{
			Name:   name,
			Width:  cfg.Width,
			Height: cfg.Height,
			SizeKB: math.Round(float64(fileSize(path))/1024*10) / 10,
		})
	}
	return dims, bad, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("decoding: %w", err)
	}
	return cfg, nil
}

// pngFiles lists PNG file names in dir, sorted. Extension matching is
// case-insensitive unless strict is set, in which case backups are also
// excluded.
func pngFiles(dir string, strict bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strict {
			if !strings.HasSuffix(name, ".png") || strings.HasSuffix(name, "_BACKUP.png") {
				continue
			}
		} else if !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
