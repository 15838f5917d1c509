package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/tomaslejdung/gomeet/pkg/session"
)

// Source produces one encoded JPEG frame per call, honoring the
// quality and resolution in the settings.
type Source interface {
	Frame(settings session.CaptureSettings) ([]byte, error)
}

// TestPattern is the built-in synthetic source: a color gradient with
// a grid overlay and a moving block, so motion and frame pacing are
// visible without any real screen capture.
type TestPattern struct {
	counter uint64
}

// NewTestPattern creates a test pattern source.
func NewTestPattern() *TestPattern {
	return &TestPattern{}
}

// Frame renders and encodes the next pattern image.
func (p *TestPattern) Frame(settings session.CaptureSettings) ([]byte, error) {
	w, h := settings.Width, settings.Height
	if w < 16 || h < 16 {
		def := session.DefaultSettings()
		w, h = def.Width, def.Height
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	p.counter++
	tick := p.counter

	shift := uint8(tick % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/w) + shift,
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}

	// Grid every 64px helps spot scaling artifacts.
	grid := color.RGBA{A: 255}
	for y := 0; y < h; y += 64 {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, grid)
		}
	}
	for x := 0; x < w; x += 64 {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, grid)
		}
	}

	// Moving block marks frame progression.
	block := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	size := 32
	bx := int(tick*8) % (w - size)
	by := h/2 - size/2
	for y := by; y < by+size; y++ {
		for x := bx; x < bx+size; x++ {
			img.SetRGBA(x, y, block)
		}
	}

	quality := settings.Quality
	if quality < 1 || quality > 100 {
		quality = session.DefaultSettings().Quality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
