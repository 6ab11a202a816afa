package divaspr

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// TXPKind identifies the section a TXP block starts with.
type TXPKind int

// TXP block kinds.
const (
	TXPTextureSet TXPKind = iota + 1
	TXPTexture
	TXPSubTexture
)

// String returns the section name.
func (k TXPKind) String() string {
	switch k {
	case TXPTextureSet:
		return "TextureSet"
	case TXPTexture:
		return "Texture"
	case TXPSubTexture:
		return "SubTexture"
	default:
		return "TXPKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// TXPBlock is a TXP section parsed at Offset of a buffer. A texture set or
// single texture fills Set; a lone subtexture fills Sub.
type TXPBlock struct {
	Order  binary.ByteOrder
	Set    *TextureSet
	Sub    *SubTexture
	Offset int
	Kind   TXPKind
}

// TXPBlockError records a signature hit that failed to parse.
type TXPBlockError struct {
	Err    error
	Offset int
}

func (e *TXPBlockError) Error() string {
	return fmt.Sprintf("txp block at %d: %v", e.Offset, e.Err)
}

func (e *TXPBlockError) Unwrap() error { return e.Err }

// txpSignature classifies four bytes as a TXP signature. Each signature
// carries its own byte order; little endian wins if both would match.
func txpSignature(b []byte) (TXPKind, binary.ByteOrder, bool) {
	if len(b) < 4 {
		return 0, nil, false
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch order.Uint32(b) {
		case txpTextureSetSig:
			return TXPTextureSet, order, true
		case txpTextureV4Sig, txpTextureV5Sig:
			return TXPTexture, order, true
		case txpSubTextureSig:
			return TXPSubTexture, order, true
		}
	}

	return 0, nil, false
}

// ParseTXP parses a standalone TXP file: a texture set, a single texture or
// a single subtexture, in whichever byte order its leading signature uses.
func ParseTXP(data []byte) (*TXPBlock, error) {
	return parseTXPBlock(data, 0)
}

func parseTXPBlock(data []byte, off int) (*TXPBlock, error) {
	if off < 0 || off > len(data) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrSeekOutOfRange, off, len(data))
	}
	kind, order, ok := txpSignature(data[off:])
	if !ok {
		if len(data)-off < 4 {
			return nil, fmt.Errorf("%w: need 4 bytes at %d", ErrUnexpectedEOF, off)
		}
		return nil, fmt.Errorf("%w: 0x%08x at %d", ErrTXPSignature, binary.LittleEndian.Uint32(data[off:]), off)
	}

	c := NewCursor(data, order)
	if err := c.SeekTo(int64(off)); err != nil {
		return nil, err
	}

	block := &TXPBlock{Offset: off, Kind: kind, Order: order}
	switch kind {
	case TXPTextureSet:
		set, err := readTextureSet(c)
		if err != nil {
			return nil, err
		}
		block.Set = set
	case TXPTexture:
		tex, err := readTexture(c)
		if err != nil {
			return nil, err
		}
		block.Set = &TextureSet{Textures: []*Texture{tex}}
	case TXPSubTexture:
		sub, err := readSubTexture(c)
		if err != nil {
			return nil, err
		}
		block.Sub = sub
	}

	return block, nil
}

// ScanTXPBlocks parses a TXP block at every offset holding a TXP signature
// in either byte order, in offset order. Sections nested in a texture set
// are reported again on their own. Hits that fail to parse are returned as
// failures.
func ScanTXPBlocks(data []byte) ([]*TXPBlock, []*TXPBlockError) {
	var (
		blocks []*TXPBlock
		failed []*TXPBlockError
	)
	for off := 0; off+4 <= len(data); off++ {
		if _, _, ok := txpSignature(data[off : off+4]); !ok {
			continue
		}

		block, err := parseTXPBlock(data, off)
		if err != nil {
			failed = append(failed, &TXPBlockError{Offset: off, Err: err})
			continue
		}
		blocks = append(blocks, block)
	}

	return blocks, failed
}

// TXPBlockSummary is a JSON friendly view of a TXP block.
type TXPBlockSummary struct {
	Type      string           `json:"type"`
	ByteOrder string           `json:"byte_order"`
	Format    string           `json:"format,omitempty"`
	Textures  []TextureSummary `json:"textures,omitempty"`
	Offset    int              `json:"offset"`
	Width     uint32           `json:"width,omitempty"`
	Height    uint32           `json:"height,omitempty"`
	ID        uint32           `json:"id,omitempty"`
}

// Summary describes the block without pixel data.
func (b *TXPBlock) Summary() TXPBlockSummary {
	sum := TXPBlockSummary{Offset: b.Offset, Type: b.Kind.String(), ByteOrder: "little"}
	if b.Order == binary.BigEndian {
		sum.ByteOrder = "big"
	}

	if b.Sub != nil {
		sum.Width = b.Sub.Width
		sum.Height = b.Sub.Height
		sum.Format = b.Sub.Format.String()
		sum.ID = b.Sub.ID
	}
	for i, tex := range b.Set.textures() {
		sum.Textures = append(sum.Textures, textureSummary(i, textureName(tex, i), tex))
	}

	return sum
}

func (s *TextureSet) textures() []*Texture {
	if s == nil {
		return nil
	}

	return s.Textures
}

// DumpSubTextures writes the raw payload of every subtexture in the block
// into outDir and returns the written paths. Files are named after the
// texture, array slice and mip level plus the subtexture header fields.
func DumpSubTextures(block *TXPBlock, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCreateFile, outDir, err)
	}

	if block.Sub != nil {
		p, err := dumpSubTexture(outDir, "sub_"+strconv.Itoa(block.Offset), block.Sub)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}

	var paths []string
	for ti, tex := range block.Set.textures() {
		for a, levels := range tex.Levels {
			for m, sub := range levels {
				if sub == nil {
					continue
				}
				p, err := dumpSubTexture(outDir, fmt.Sprintf("tex%d_arr%d_mip%d", ti, a, m), sub)
				if err != nil {
					return paths, err
				}
				paths = append(paths, p)
			}
		}
	}

	return paths, nil
}

// ExportBaseMips writes the base level of every texture in the texture set
// and texture blocks into outDir/base_<offset>. Subtexture blocks are skipped.
func ExportBaseMips(blocks []*TXPBlock, outDir string) ([]string, error) {
	var paths []string
	for _, block := range blocks {
		if block.Set == nil {
			continue
		}

		dir := filepath.Join(outDir, "base_"+strconv.Itoa(block.Offset))
		for ti, tex := range block.Set.Textures {
			base := tex.Base()
			if base == nil {
				continue
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return paths, fmt.Errorf("%w: %q: %v", ErrCreateFile, dir, err)
			}
			p, err := dumpSubTexture(dir, fmt.Sprintf("tex%d_base", ti), base)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
	}

	return paths, nil
}

func dumpSubTexture(dir, prefix string, sub *SubTexture) (string, error) {
	name := fmt.Sprintf("%s_w%d_h%d_f%d_id%d.bin", prefix, sub.Width, sub.Height, int(sub.Format), sub.ID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, sub.Data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}

	return path, nil
}
