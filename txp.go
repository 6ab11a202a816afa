package divaspr

import "fmt"

// TXP section signatures ("TXP" followed by a type byte).
const (
	txpSubTextureSig = 0x02505854
	txpTextureSetSig = 0x03505854
	txpTextureV4Sig  = 0x04505854
	txpTextureV5Sig  = 0x05505854
)

// Plausibility limits used to reject garbage while probing byte order.
const (
	maxTextures   = 4096
	maxSubTexture = 1024
	maxMipLevels  = 32
	maxDimension  = 1 << 15
)

// SubTexture is one mip level of one array slice.
type SubTexture struct {
	Data   []byte
	Width  uint32
	Height uint32
	Format PixelFormat
	ID     uint32
}

// Texture is a named image with mip levels, stored [array slice][mip level].
type Texture struct {
	Name      string
	Levels    [][]*SubTexture
	Version   int
	ArraySize int
	MipCount  int
}

// Base returns level 0 of array slice 0, or nil.
func (t *Texture) Base() *SubTexture {
	if t == nil || len(t.Levels) == 0 || len(t.Levels[0]) == 0 {
		return nil
	}

	return t.Levels[0][0]
}

// Format returns the pixel format of the base level.
func (t *Texture) Format() PixelFormat {
	if base := t.Base(); base != nil {
		return base.Format
	}

	return PixelFormat(-1)
}

// TextureSet is the ordered texture list sprites index into.
type TextureSet struct {
	Textures []*Texture
}

// Len returns the number of textures.
func (s *TextureSet) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Textures)
}

// readTextureSet parses a TXP texture set starting at the cursor position.
// Texture offsets are relative to the set start.
func readTextureSet(c *Cursor) (*TextureSet, error) {
	base := int64(c.Pos())

	sig, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if sig != txpTextureSetSig {
		return nil, fmt.Errorf("%w: texture set 0x%08x at %d", ErrTXPSignature, sig, base)
	}

	count, err := c.ReadI32()
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadI32(); err != nil { // count including unused slots
		return nil, err
	}
	if count < 0 || count > maxTextures {
		return nil, fmt.Errorf("%w: %d textures", ErrTXPCount, count)
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		if offsets[i], err = c.ReadU32(); err != nil {
			return nil, err
		}
	}

	set := &TextureSet{Textures: make([]*Texture, count)}
	for i, off := range offsets {
		if off == 0 {
			set.Textures[i] = &Texture{}
			continue
		}
		if err := c.SeekTo(base + int64(off)); err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		tex, err := readTexture(c)
		if err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		set.Textures[i] = tex
	}

	return set, nil
}

// readTexture parses one TXP texture. Subtexture offsets are relative to the texture start.
func readTexture(c *Cursor) (*Texture, error) {
	base := int64(c.Pos())

	sig, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	tex := &Texture{}
	switch sig {
	case txpTextureV4Sig:
		tex.Version = 4
	case txpTextureV5Sig:
		tex.Version = 5
	default:
		return nil, fmt.Errorf("%w: texture 0x%08x at %d", ErrTXPSignature, sig, base)
	}

	subCount, err := c.ReadI32()
	if err != nil {
		return nil, err
	}
	info, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if subCount < 0 || subCount > maxSubTexture {
		return nil, fmt.Errorf("%w: %d subtextures", ErrTXPCount, subCount)
	}

	mipCount := int(info & 0xff)
	arraySize := int((info >> 8) & 0xff)
	if arraySize == 1 && mipCount != int(subCount) {
		mipCount = int(subCount)
	}
	tex.ArraySize = max(1, arraySize)
	tex.MipCount = max(1, mipCount)
	if tex.MipCount > maxMipLevels || tex.ArraySize*tex.MipCount > maxSubTexture {
		return nil, fmt.Errorf("%w: %d x %d levels", ErrTXPCount, tex.ArraySize, tex.MipCount)
	}

	offsets := make([]uint32, tex.ArraySize*tex.MipCount)
	for i := range offsets {
		if offsets[i], err = c.ReadU32(); err != nil {
			return nil, err
		}
	}

	tex.Levels = make([][]*SubTexture, tex.ArraySize)
	for a := range tex.Levels {
		tex.Levels[a] = make([]*SubTexture, tex.MipCount)
		for m := range tex.Levels[a] {
			off := offsets[a*tex.MipCount+m]
			if off == 0 {
				continue
			}
			if err := c.SeekTo(base + int64(off)); err != nil {
				return nil, fmt.Errorf("subtexture %d/%d: %w", a, m, err)
			}
			sub, err := readSubTexture(c)
			if err != nil {
				return nil, fmt.Errorf("subtexture %d/%d: %w", a, m, err)
			}
			tex.Levels[a][m] = sub
		}
	}

	return tex, nil
}

// readSubTexture parses one TXP subtexture header and payload.
func readSubTexture(c *Cursor) (*SubTexture, error) {
	at := c.Pos()

	var fields [6]int32 // signature, width, height, format, id, data size
	for i := range fields {
		v, err := c.ReadI32()
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	if uint32(fields[0]) != txpSubTextureSig {
		return nil, fmt.Errorf("%w: subtexture 0x%08x at %d", ErrTXPSignature, uint32(fields[0]), at)
	}

	width, height, size := fields[1], fields[2], fields[5]
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("%w: subtexture %dx%d at %d", ErrTXPCount, width, height, at)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: subtexture data size %d at %d", ErrTXPCount, size, at)
	}

	data, err := c.ReadBytes(int(size))
	if err != nil {
		return nil, err
	}

	return &SubTexture{
		Width:  uint32(width),
		Height: uint32(height),
		Format: PixelFormat(fields[3]),
		ID:     uint32(fields[4]),
		Data:   data,
	}, nil
}
