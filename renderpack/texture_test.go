package renderpack

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestDecodeRGBA8(t *testing.T) {
	pix := bytes.Repeat([]byte{0x10, 0x20, 0x30, 0xFF}, 4*4)
	p := &TexturePayload{Format: PayloadRGBA8, Width: 4, Height: 4, Data: pix}

	got, err := p.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got, pix) {
		t.Error("Decode() altered raw RGBA8 data")
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		payload TexturePayload
	}{
		{"RGBA8 short", TexturePayload{Format: PayloadRGBA8, Width: 4, Height: 4, Data: make([]byte, 10)}},
		{"RGBA8 long", TexturePayload{Format: PayloadRGBA8, Width: 2, Height: 2, Data: make([]byte, 17)}},
		{"DXT1 short", TexturePayload{Format: PayloadDXT1, Width: 8, Height: 8, Data: make([]byte, 31)}},
		{"DXT5 short", TexturePayload{Format: PayloadDXT5, Width: 4, Height: 4, Data: make([]byte, 8)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.payload.Decode(); !errors.Is(err, ErrPayloadSize) {
				t.Errorf("Decode() error = %v, want ErrPayloadSize", err)
			}
		})
	}
}

func TestDecodeNonPositiveSize(t *testing.T) {
	p := &TexturePayload{Format: PayloadRGBA8, Width: 0, Height: 4}
	if _, err := p.Decode(); err == nil {
		t.Fatal("Decode() = nil, want size error")
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	p := &TexturePayload{Format: PayloadFormat(42), Width: 4, Height: 4, Data: make([]byte, 64)}
	if _, err := p.Decode(); err == nil {
		t.Fatal("Decode() = nil, want unknown format error")
	}
}

func TestDecodeDXT1(t *testing.T) {
	// One 4x4 block of zeros decodes to an all-black image.
	p := &TexturePayload{Format: PayloadDXT1, Width: 4, Height: 4, Data: make([]byte, 8)}
	got, err := p.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 4*4*4 {
		t.Errorf("decoded length = %d, want %d", len(got), 4*4*4)
	}
}

func TestDecodeCompressedPayload(t *testing.T) {
	pix := bytes.Repeat([]byte{0xAA, 0xBB, 0xCC, 0xFF}, 8*8)

	var c lz4.Compressor
	packed := make([]byte, lz4.CompressBlockBound(len(pix)))
	n, err := c.CompressBlock(pix, packed)
	if err != nil {
		t.Fatalf("CompressBlock() error = %v", err)
	}
	if n == 0 {
		t.Fatal("CompressBlock() found the data incompressible")
	}

	p := &TexturePayload{
		Format:           PayloadRGBA8,
		Width:            8,
		Height:           8,
		Compressed:       true,
		UncompressedSize: len(pix),
		Data:             packed[:n],
	}
	got, err := p.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got, pix) {
		t.Error("Decode() of compressed payload does not round-trip")
	}
}

func TestDecodeCorruptCompressedPayload(t *testing.T) {
	p := &TexturePayload{
		Format:           PayloadRGBA8,
		Width:            4,
		Height:           4,
		Compressed:       true,
		UncompressedSize: 64,
		Data:             []byte{0xFF, 0xFF, 0xFF},
	}
	if _, err := p.Decode(); err == nil {
		t.Fatal("Decode() = nil, want lz4 error")
	}
}

func TestGenerateMipChain(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantLevels int
		wantDims   [][2]int
	}{
		{"square", 8, 8, 4, [][2]int{{8, 8}, {4, 4}, {2, 2}, {1, 1}}},
		{"wide", 8, 2, 4, [][2]int{{8, 2}, {4, 1}, {2, 1}, {1, 1}}},
		{"single pixel", 1, 1, 1, [][2]int{{1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rgba := bytes.Repeat([]byte{0x80, 0x80, 0x80, 0xFF}, tt.w*tt.h)
			chain, err := GenerateMipChain(rgba, tt.w, tt.h)
			if err != nil {
				t.Fatalf("GenerateMipChain() error = %v", err)
			}
			if len(chain) != tt.wantLevels {
				t.Fatalf("levels = %d, want %d", len(chain), tt.wantLevels)
			}
			for i, dims := range tt.wantDims {
				if want := dims[0] * dims[1] * 4; len(chain[i]) != want {
					t.Errorf("level %d length = %d, want %d (%dx%d)", i, len(chain[i]), want, dims[0], dims[1])
				}
			}
		})
	}
}

func TestGenerateMipChainSizeMismatch(t *testing.T) {
	if _, err := GenerateMipChain(make([]byte, 10), 4, 4); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("GenerateMipChain() error = %v, want ErrPayloadSize", err)
	}
}

func TestPayloadFormatString(t *testing.T) {
	if PayloadDXT5.String() != "DXT5" {
		t.Errorf("String() = %q, want DXT5", PayloadDXT5.String())
	}
	if PayloadFormat(9).String() != "PayloadFormat(9)" {
		t.Errorf("String() = %q", PayloadFormat(9).String())
	}
}
