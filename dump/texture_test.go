package dump

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/gogpu/texcache/tiling"
)

// tiledBGR returns a tiled 16x8 BGR888 texture whose texel (x, y) is
// B=x, G=y, R=0x80.
func tiledBGR(t *testing.T) (TextureInfo, []byte) {
	t.Helper()
	info := TextureInfo{Width: 16, Height: 8}
	linear := make([]byte, info.Width*info.Height*3)
	for y := 0; y < info.Height; y++ {
		for x := 0; x < info.Width; x++ {
			i := (y*info.Width + x) * 3
			linear[i], linear[i+1], linear[i+2] = byte(x), byte(y), 0x80
		}
	}
	tiled := make([]byte, len(linear))
	if err := tiling.Tile(tiled, linear, info.Width, info.Height, 3); err != nil {
		t.Fatal(err)
	}
	return info, tiled
}

func TestWriteTexturePNG(t *testing.T) {
	info, tiled := tiledBGR(t)
	var buf bytes.Buffer
	if err := WriteTexture(&buf, info, tiled); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Fatalf("bounds = %v", b)
	}
	for _, p := range [][2]int{{0, 0}, {5, 3}, {15, 7}, {9, 0}} {
		got := color.RGBAModel.Convert(img.At(p[0], p[1])).(color.RGBA)
		want := color.RGBA{R: 0x80, G: uint8(p[1]), B: uint8(p[0]), A: 0xFF}
		if got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestWriteTextureBMPScaled(t *testing.T) {
	info, tiled := tiledBGR(t)
	var buf bytes.Buffer
	if err := WriteTexture(&buf, info, tiled, WithBMP(), WithScale(2)); err != nil {
		t.Fatal(err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("bmp.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Fatalf("bounds = %v, want 32x16", b)
	}
	got := color.RGBAModel.Convert(img.At(11, 7)).(color.RGBA)
	if want := (color.RGBA{R: 0x80, G: 3, B: 5, A: 0xFF}); got != want {
		t.Errorf("pixel (11, 7) = %v, want %v", got, want)
	}
}

func TestWriteTextureErrors(t *testing.T) {
	info, tiled := tiledBGR(t)
	if err := WriteTexture(&bytes.Buffer{}, info, tiled[:10]); err == nil {
		t.Error("short data accepted")
	}
	if err := WriteTexture(&bytes.Buffer{}, TextureInfo{Width: 12, Height: 8}, tiled); err == nil {
		t.Error("unaligned width accepted")
	}
}
