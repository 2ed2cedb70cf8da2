package imagetruth

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ModelInputSize is the square edge, in pixels, the classifier expects.
const ModelInputSize = 224

const rgbChannels = 3

// ErrDecode is returned when image bytes cannot be decoded.
var ErrDecode = errors.New("imagetruth: cannot decode image")

// PixelBuffer is a fixed-size packed RGB image (no alpha), row-major.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte // len = Width*Height*3
}

// Image returns the buffer as an opaque RGBA image.
func (p *PixelBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i+rgbChannels <= len(p.Pix) && j+4 <= len(img.Pix); i, j = i+rgbChannels, j+4 {
		img.Pix[j] = p.Pix[i]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// Preprocess decodes image bytes and resizes them to a size×size RGB buffer.
// The decoded source image is returned too, for fingerprinting.
// size <= 0 means ModelInputSize.
func Preprocess(data []byte, size int) (*PixelBuffer, image.Image, error) {
	if size <= 0 {
		size = ModelInputSize
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty data", ErrDecode)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if src.Bounds().Empty() {
		return nil, nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	return Resize(src, size), src, nil
}

// Resize scales img to size×size with Catmull-Rom resampling and drops alpha.
func Resize(img image.Image, size int) *PixelBuffer {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	pix := make([]byte, size*size*rgbChannels)
	for i, j := 0, 0; i < len(dst.Pix); i, j = i+4, j+rgbChannels {
		pix[j] = dst.Pix[i]
		pix[j+1] = dst.Pix[i+1]
		pix[j+2] = dst.Pix[i+2]
	}

	return &PixelBuffer{Width: size, Height: size, Pix: pix}
}
