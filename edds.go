package divaspr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/bcn"
)

const (
	// blockMagicCOPY marks an uncompressed EDDS block.
	blockMagicCOPY = "COPY"
	// blockMagicLZ4 marks an LZ4 chunk-stream EDDS block.
	blockMagicLZ4 = "LZ4 "

	// eddsChunkSize is the Enfusion LZ4 chunk size.
	eddsChunkSize = 64 * 1024

	// blocks smaller than this are always stored
	minCompressSize = 1024
	// compression must save at least 15% to be kept
	compressRatio = 0.85

	maxEDDSMipMaps = 11
)

// eddsBlock is one mip level body.
type eddsBlock struct {
	magic            string
	data             []byte
	size             int32
	uncompressedSize int32
}

// EDDSEncoder writes sprites as Enfusion EDDS textures with a lossless
// BGRA8 payload, optionally with a mip chain and LZ4 compressed blocks.
type EDDSEncoder struct {
	// MaxMipMaps limits the mip chain; 0 or 1 writes only the full image.
	MaxMipMaps int
	// Compress enables LZ4 chunk-stream blocks where they save space.
	Compress bool
}

// Ext implements ImageEncoder.
func (EDDSEncoder) Ext() string { return ".edds" }

// Encode implements ImageEncoder.
func (e EDDSEncoder) Encode(w io.Writer, img *image.NRGBA) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()

	levels := [][]byte{}
	mips := []image.Image{img}
	if e.MaxMipMaps > 1 {
		mips = mips[:0]
		for _, m := range bcn.GenerateMipmaps(img, false) {
			mips = append(mips, m)
		}
		if n := min(e.MaxMipMaps, mipMapCount(width, height)); len(mips) > n {
			mips = mips[:n]
		}
	}
	for i, m := range mips {
		data, _, _, err := bcn.EncodeImageWithOptions(m, bcn.FormatBGRA8, nil)
		if err != nil {
			return fmt.Errorf("%w: mipmap %d: %v", ErrEncodeImage, i, err)
		}
		levels = append(levels, data)
	}

	blocks := make([]*eddsBlock, len(levels))
	for i, data := range levels {
		b, err := newEDDSBlock(data, e.Compress)
		if err != nil {
			return fmt.Errorf("mipmap %d: %w", i, err)
		}
		blocks[i] = b
	}

	w32, err := u32FromInt(width)
	if err != nil {
		return err
	}
	h32, err := u32FromInt(height)
	if err != nil {
		return err
	}
	header := eddsHeader(w32, h32, uint32(len(blocks)))

	if err := bcn.WriteDDSMagic(w); err != nil {
		return fmt.Errorf("%w: DDS magic: %v", ErrEncodeImage, err)
	}
	if err := bcn.WriteDDSHeader(w, header); err != nil {
		return fmt.Errorf("%w: DDS header: %v", ErrEncodeImage, err)
	}

	// Block table and bodies run from the smallest level to the largest.
	for i := len(blocks) - 1; i >= 0; i-- {
		if _, err := io.WriteString(w, blocks[i].magic); err != nil {
			return fmt.Errorf("%w: block table: %v", ErrEncodeImage, err)
		}
		if err := binary.Write(w, binary.LittleEndian, blocks[i].size); err != nil {
			return fmt.Errorf("%w: block table: %v", ErrEncodeImage, err)
		}
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if err := writeEDDSBlock(w, blocks[i]); err != nil {
			return fmt.Errorf("%w: mipmap %d: %v", ErrEncodeImage, i, err)
		}
	}

	return nil
}

// eddsHeader builds a DDS header for an uncompressed BGRA8 texture.
func eddsHeader(width, height, mipMapCount uint32) *bcn.DDSHeader {
	flags := uint32(bcn.DDSFlagCaps | bcn.DDSFlagHeight | bcn.DDSFlagWidth | bcn.DDSFlagPixelFormat)
	caps := uint32(bcn.DDSCapsTexture)
	if mipMapCount > 1 {
		flags |= bcn.DDSFlagMipmapCount
		caps |= bcn.DDSCapsComplex | bcn.DDSCapsMipmap
	}

	hdr := &bcn.DDSHeader{
		Size:              bcn.DDSHeaderSize,
		Flags:             flags | bcn.DDSFlagPitch,
		Height:            height,
		Width:             width,
		Depth:             1,
		MipMapCount:       mipMapCount,
		PitchOrLinearSize: width * 4,
		Caps:              caps,
	}
	hdr.Reserved1[1] = 0x31464e45 // "ENF1"

	hdr.PixelFormat.Size = bcn.DDSPixelFormatSize
	hdr.PixelFormat.Flags = bcn.DDSPFRGB | bcn.DDSPFAlphaPixels
	hdr.PixelFormat.RGBBitCount = 32
	hdr.PixelFormat.RBitMask = 0x00ff0000
	hdr.PixelFormat.GBitMask = 0x0000ff00
	hdr.PixelFormat.BBitMask = 0x000000ff
	hdr.PixelFormat.ABitMask = 0xff000000

	return hdr
}

// mipMapCount returns the full chain length for the given size, capped
// at the Enfusion limit.
func mipMapCount(width, height int) int {
	count := 1
	for width > 1 || height > 1 {
		count++
		width = max(1, width/2)
		height = max(1, height/2)
	}

	return min(count, maxEDDSMipMaps)
}

// newEDDSBlock wraps one level payload, LZ4 compressing it when allowed
// and worthwhile.
func newEDDSBlock(data []byte, compress bool) (*eddsBlock, error) {
	size, err := i32FromInt(len(data))
	if err != nil {
		return nil, err
	}
	stored := &eddsBlock{magic: blockMagicCOPY, size: size, data: data}
	if !compress || len(data) < minCompressSize {
		return stored, nil
	}

	stream, ok, err := lz4ChunkStream(data)
	if err != nil || !ok {
		return stored, err
	}

	total := 4 + len(stream)
	if float64(total) > float64(len(data))*compressRatio {
		return stored, nil
	}
	blockSize, err := i32FromInt(total)
	if err != nil {
		return nil, err
	}

	return &eddsBlock{
		magic:            blockMagicLZ4,
		size:             blockSize,
		uncompressedSize: size,
		data:             stream,
	}, nil
}

// lz4ChunkStream compresses data into 64KB chunks, each prefixed by a
// 24-bit size and a flags byte (0x80 on the last chunk). ok is false when
// a chunk does not compress well enough.
func lz4ChunkStream(data []byte) ([]byte, bool, error) {
	var stream bytes.Buffer
	buf := make([]byte, lz4.CompressBlockBound(eddsChunkSize))

	for start := 0; start < len(data); start += eddsChunkSize {
		end := min(start+eddsChunkSize, len(data))
		chunk := data[start:end]

		n, err := lz4.CompressBlockHC(chunk, buf, 0, nil, nil)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrLZ4Compress, err)
		}
		if n == 0 || float64(n) > float64(len(chunk))*compressRatio {
			return nil, false, nil
		}
		if n > 0x7fffff {
			return nil, false, fmt.Errorf("%w: %d", ErrChunkTooLarge, n)
		}

		flags := byte(0)
		if end == len(data) {
			flags = 0x80
		}
		stream.Write([]byte{byte(n), byte(n >> 8), byte(n >> 16), flags})
		stream.Write(buf[:n])
	}

	return stream.Bytes(), true, nil
}

// writeEDDSBlock writes a block body (no table entry).
func writeEDDSBlock(w io.Writer, b *eddsBlock) error {
	if b.magic == blockMagicLZ4 {
		if err := binary.Write(w, binary.LittleEndian, b.uncompressedSize); err != nil {
			return err
		}
	}
	_, err := w.Write(b.data)

	return err
}
