package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/midgard-details/internal/hiz"
)

// Capture writes screenshots and depth pyramid levels as PNG files.
type Capture struct {
	outputDir string
	prefix    string
}

// NewCapture creates a capture handler writing into outputDir.
func NewCapture(outputDir, prefix string) *Capture {
	return &Capture{outputDir: outputDir, prefix: prefix}
}

// Filename returns a timestamped file name with the given suffix.
func (c *Capture) Filename(suffix string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	name := fmt.Sprintf("%s_%s%s.png", c.prefix, timestamp, suffix)
	if c.outputDir != "" {
		name = filepath.Join(c.outputDir, name)
	}
	return name
}

// SaveColor saves RGBA pixels read from GL, bottom row first.
func (c *Capture) SaveColor(pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return c.save(img, "")
}

// SaveDepth saves one level of a depth pyramid as a 16-bit grayscale
// image, near depths dark.
func (c *Capture) SaveDepth(p *hiz.Pyramid, level int) (string, error) {
	if p == nil || level < 0 || level >= len(p.Levels) {
		return "", fmt.Errorf("depth level %d out of range", level)
	}
	l := p.Levels[level]
	img := image.NewGray16(image.Rect(0, 0, l.Width, l.Height))
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			d := p.At(level, x, l.Height-1-y)
			if p.ReversedZ {
				d = 1 - d
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(min(max(d, 0), 1) * 0xFFFF)})
		}
	}
	return c.save(img, fmt.Sprintf("_hiz%d", level))
}

func (c *Capture) save(img image.Image, suffix string) (string, error) {
	if c.outputDir != "" {
		if err := os.MkdirAll(c.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := c.Filename(suffix)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}
