package renderpack

import (
	"errors"
	"fmt"
	"image"

	"github.com/mauserzjeh/dxt"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/image/draw"
)

// PayloadFormat identifies the on-disk encoding of a texture payload.
type PayloadFormat uint8

const (
	// PayloadRGBA8 is raw 8-bit RGBA, 4 bytes per pixel.
	PayloadRGBA8 PayloadFormat = iota
	// PayloadDXT1 is BC1 block compression, 8 bytes per 4x4 block.
	PayloadDXT1
	// PayloadDXT5 is BC3 block compression, 16 bytes per 4x4 block.
	PayloadDXT5
)

func (f PayloadFormat) String() string {
	switch f {
	case PayloadRGBA8:
		return "RGBA8"
	case PayloadDXT1:
		return "DXT1"
	case PayloadDXT5:
		return "DXT5"
	default:
		return fmt.Sprintf("PayloadFormat(%d)", uint8(f))
	}
}

// ErrPayloadSize is returned when a payload's byte count disagrees with the
// arithmetic for its stated format and dimensions.
var ErrPayloadSize = errors.New("renderpack: payload size mismatch")

// TexturePayload is the raw pixel blob for one texture as stored in a pack,
// possibly lz4 block-compressed and possibly DXT-encoded.
type TexturePayload struct {
	Format PayloadFormat
	Width  int
	Height int

	// Compressed marks Data as an lz4 block; UncompressedSize is the
	// decoded length.
	Compressed       bool
	UncompressedSize int

	Data []byte
}

// Decode returns the payload as tightly packed 8-bit RGBA pixels.
func (p *TexturePayload) Decode() ([]byte, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("renderpack: payload has non-positive size %dx%d", p.Width, p.Height)
	}

	data := p.Data
	if p.Compressed {
		decoded := make([]byte, p.UncompressedSize)
		if _, err := lz4.UncompressBlock(p.Data, decoded); err != nil {
			return nil, fmt.Errorf("renderpack: lz4 decompress: %w", err)
		}
		data = decoded
	}

	blocksW := (p.Width + 3) / 4
	blocksH := (p.Height + 3) / 4

	switch p.Format {
	case PayloadRGBA8:
		if want := p.Width * p.Height * 4; len(data) != want {
			return nil, fmt.Errorf("%w: RGBA8 %dx%d needs %d bytes, payload has %d",
				ErrPayloadSize, p.Width, p.Height, want, len(data))
		}
		return data, nil

	case PayloadDXT1:
		if want := blocksW * blocksH * 8; len(data) != want {
			return nil, fmt.Errorf("%w: DXT1 %dx%d needs %d bytes, payload has %d",
				ErrPayloadSize, p.Width, p.Height, want, len(data))
		}
		pix, err := dxt.DecodeDXT1(data, uint(p.Width), uint(p.Height))
		if err != nil {
			return nil, fmt.Errorf("renderpack: DXT1 decode: %w", err)
		}
		return pix, nil

	case PayloadDXT5:
		if want := blocksW * blocksH * 16; len(data) != want {
			return nil, fmt.Errorf("%w: DXT5 %dx%d needs %d bytes, payload has %d",
				ErrPayloadSize, p.Width, p.Height, want, len(data))
		}
		pix, err := dxt.DecodeDXT5(data, uint(p.Width), uint(p.Height))
		if err != nil {
			return nil, fmt.Errorf("renderpack: DXT5 decode: %w", err)
		}
		return pix, nil

	default:
		return nil, fmt.Errorf("renderpack: unknown payload format %d", p.Format)
	}
}

// GenerateMipChain builds the full mip chain for a decoded RGBA image, level
// zero included. Each level halves both dimensions (floored, minimum 1)
// until 1x1 is reached.
func GenerateMipChain(rgba []byte, width, height int) ([][]byte, error) {
	if want := width * height * 4; len(rgba) != want {
		return nil, fmt.Errorf("%w: RGBA8 %dx%d needs %d bytes, got %d",
			ErrPayloadSize, width, height, want, len(rgba))
	}

	src := &image.RGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	chain := [][]byte{rgba}
	w, h := width, height
	for w > 1 || h > 1 {
		w = max(w/2, 1)
		h = max(h/2, 1)

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
		chain = append(chain, dst.Pix)
		src = dst
	}

	return chain, nil
}
