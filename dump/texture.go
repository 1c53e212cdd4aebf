package dump

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gogpu/texcache/tiling"
)

// TextureInfo describes a tiled BGR888 texture in emulated GPU memory.
type TextureInfo struct {
	Width  int
	Height int
}

// bgrBytesPerTexel is the texel size of the dumped format.
const bgrBytesPerTexel = 3

type textureOptions struct {
	bmp   bool
	scale int
}

// TextureOption configures WriteTexture.
type TextureOption func(*textureOptions)

// WithBMP encodes the dump as BMP instead of PNG.
func WithBMP() TextureOption {
	return func(o *textureOptions) { o.bmp = true }
}

// WithScale enlarges the dump n times with nearest-neighbor sampling.
// Values below 2 leave the size unchanged.
func WithScale(n int) TextureOption {
	return func(o *textureOptions) { o.scale = n }
}

// DecodeTexture de-tiles a BGR888 texture into an opaque RGBA image.
func DecodeTexture(info TextureInfo, tiled []byte) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	err := tiling.UntileFunc(tiled, info.Width, info.Height, bgrBytesPerTexel, func(x, y int, texel []byte) {
		i := img.PixOffset(x, y)
		img.Pix[i+0] = texel[2]
		img.Pix[i+1] = texel[1]
		img.Pix[i+2] = texel[0]
		img.Pix[i+3] = 0xFF
	})
	if err != nil {
		return nil, fmt.Errorf("dump: texture %dx%d: %w", info.Width, info.Height, err)
	}
	return img, nil
}

// WriteTexture de-tiles a BGR888 texture and encodes it as an 8-bit RGB
// image, PNG unless WithBMP is given.
func WriteTexture(w io.Writer, info TextureInfo, tiled []byte, opts ...TextureOption) error {
	var o textureOptions
	for _, opt := range opts {
		opt(&o)
	}

	rgba, err := DecodeTexture(info, tiled)
	if err != nil {
		return err
	}
	var img image.Image = rgba
	if o.scale > 1 {
		scaled := image.NewRGBA(image.Rect(0, 0, info.Width*o.scale, info.Height*o.scale))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), rgba, rgba.Bounds(), draw.Src, nil)
		img = scaled
	}

	if o.bmp {
		if err := bmp.Encode(w, img); err != nil {
			return fmt.Errorf("dump: encode texture: %w", err)
		}
		return nil
	}
	return encodePNG(w, img)
}

func encodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("dump: encode texture: %w", err)
	}
	return nil
}
