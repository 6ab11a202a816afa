package divaspr

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/golang/glog"
)

const (
	spriteSetHeaderSize = 32
	spriteRecordSize    = 40
	maxSprites          = 1 << 16
)

// Sprite is a named rectangle in a texture, in pixels with a top-left origin.
type Sprite struct {
	Name           string
	RectBegin      [2]float32
	RectEnd        [2]float32
	TextureIndex   uint32
	X              uint32
	Y              uint32
	Width          uint32
	Height         uint32
	ResolutionMode uint32
}

// Atlas is a parsed sprite set: textures plus sprites referencing them.
type Atlas struct {
	Order    binary.ByteOrder
	Textures *TextureSet
	Sprites  []Sprite
}

// TextureName returns the texture name or a positional fallback.
func (a *Atlas) TextureName(index uint32) string {
	var tex *Texture
	if int(index) < a.Textures.Len() {
		tex = a.Textures.Textures[index]
	}

	return textureName(tex, int(index))
}

// textureName returns the texture name, or texture_<index> when it has none.
func textureName(tex *Texture, index int) string {
	if tex != nil && tex.Name != "" {
		return tex.Name
	}

	return "texture_" + strconv.Itoa(index)
}

// spriteSetHeader is the fixed sprite set header at the start of the blob.
type spriteSetHeader struct {
	Signature          uint32
	TexturesOffset     uint32
	TextureCount       int32
	SpriteCount        int32
	SpritesOffset      uint32
	TextureNamesOffset uint32
	SpriteNamesOffset  uint32
	SpriteModesOffset  uint32
}

// ParseAtlas parses a sprite set blob, detecting its byte order by a trial
// parse in each order. A blob valid in neither order fails with ErrNotAtlas;
// one valid in both orders fails with ErrAmbiguousByteOrder unless both
// parses are empty.
func ParseAtlas(data []byte) (*Atlas, error) {
	be, beErr := parseAtlasOrder(data, binary.BigEndian)
	le, leErr := parseAtlasOrder(data, binary.LittleEndian)

	switch {
	case beErr == nil && leErr == nil:
		// With the current limits only empty atlases validate in both
		// orders: a texture count in (0, maxTextures] is out of range in the
		// other order, and with no textures every sprite fails the texture
		// index check. ErrAmbiguousByteOrder guards against relaxed limits.
		if isEmptyAtlas(be) && isEmptyAtlas(le) {
			return le, nil
		}
		return nil, ErrAmbiguousByteOrder
	case beErr == nil:
		glog.V(1).Infof("atlas: big endian, %d textures, %d sprites", be.Textures.Len(), len(be.Sprites))
		return be, nil
	case leErr == nil:
		glog.V(1).Infof("atlas: little endian, %d textures, %d sprites", le.Textures.Len(), len(le.Sprites))
		return le, nil
	default:
		return nil, fmt.Errorf("%w: big endian: %v; little endian: %v", ErrNotAtlas, beErr, leErr)
	}
}

func isEmptyAtlas(a *Atlas) bool {
	return a.Textures.Len() == 0 && len(a.Sprites) == 0
}

// ParseAtlasOrder parses a sprite set blob in a fixed byte order.
func ParseAtlasOrder(data []byte, order binary.ByteOrder) (*Atlas, error) {
	return parseAtlasOrder(data, order)
}

func parseAtlasOrder(data []byte, order binary.ByteOrder) (*Atlas, error) {
	c := NewCursor(data, order)

	h, err := readSpriteSetHeader(c)
	if err != nil {
		return nil, err
	}

	atlas := &Atlas{Order: order, Textures: &TextureSet{}}

	if h.TexturesOffset != 0 {
		if err := c.SeekTo(int64(h.TexturesOffset)); err != nil {
			return nil, fmt.Errorf("texture set: %w", err)
		}
		if atlas.Textures, err = readTextureSet(c); err != nil {
			return nil, fmt.Errorf("texture set: %w", err)
		}
		if atlas.Textures.Len() != int(h.TextureCount) {
			return nil, fmt.Errorf("%w: header declares %d textures, set holds %d",
				ErrSpriteSetHeader, h.TextureCount, atlas.Textures.Len())
		}
	}

	if h.TextureNamesOffset != 0 {
		names, err := readNameTable(c, h.TextureNamesOffset, atlas.Textures.Len())
		if err != nil {
			return nil, fmt.Errorf("texture names: %w", err)
		}
		for i, name := range names {
			atlas.Textures.Textures[i].Name = name
		}
	}

	if atlas.Sprites, err = readSprites(c, h); err != nil {
		return nil, err
	}

	for i := range atlas.Sprites {
		if int(atlas.Sprites[i].TextureIndex) >= atlas.Textures.Len() {
			return nil, fmt.Errorf("%w: sprite %d references texture %d of %d",
				ErrTextureIndex, i, atlas.Sprites[i].TextureIndex, atlas.Textures.Len())
		}
	}

	return atlas, nil
}

// readSpriteSetHeader reads the header and checks its counts and offsets
// against the buffer so a wrong byte order is rejected early.
func readSpriteSetHeader(c *Cursor) (*spriteSetHeader, error) {
	if c.Len() < spriteSetHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnexpectedEOF, c.Len())
	}

	var words [8]uint32
	for i := range words {
		v, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		words[i] = v
	}
	h := &spriteSetHeader{
		Signature:          words[0],
		TexturesOffset:     words[1],
		TextureCount:       int32(words[2]),
		SpriteCount:        int32(words[3]),
		SpritesOffset:      words[4],
		TextureNamesOffset: words[5],
		SpriteNamesOffset:  words[6],
		SpriteModesOffset:  words[7],
	}

	size := uint64(c.Len())
	switch {
	case h.TextureCount < 0 || h.TextureCount > maxTextures:
		return nil, fmt.Errorf("%w: %d textures", ErrSpriteSetHeader, h.TextureCount)
	case h.SpriteCount < 0 || h.SpriteCount > maxSprites:
		return nil, fmt.Errorf("%w: %d sprites", ErrSpriteSetHeader, h.SpriteCount)
	case uint64(h.TexturesOffset) >= size:
		return nil, fmt.Errorf("%w: texture set offset %d", ErrSpriteSetHeader, h.TexturesOffset)
	case h.TexturesOffset == 0 && h.TextureCount != 0:
		return nil, fmt.Errorf("%w: %d textures without a texture set", ErrSpriteSetHeader, h.TextureCount)
	case h.SpriteCount > 0 && h.SpritesOffset == 0:
		return nil, fmt.Errorf("%w: %d sprites without a sprite table", ErrSpriteSetHeader, h.SpriteCount)
	}

	tables := []struct {
		name   string
		offset uint32
		size   uint64
	}{
		{"sprites", h.SpritesOffset, uint64(h.SpriteCount) * spriteRecordSize},
		{"texture names", h.TextureNamesOffset, uint64(h.TextureCount) * 4},
		{"sprite names", h.SpriteNamesOffset, uint64(h.SpriteCount) * 4},
		{"sprite modes", h.SpriteModesOffset, uint64(h.SpriteCount) * 4},
	}
	for _, t := range tables {
		if t.offset != 0 && uint64(t.offset)+t.size > size {
			return nil, fmt.Errorf("%w: %s table [%d, +%d) exceeds %d bytes", ErrSpriteSetHeader, t.name, t.offset, t.size, size)
		}
	}

	return h, nil
}

// readSprites reads sprite records, names and resolution modes.
func readSprites(c *Cursor, h *spriteSetHeader) ([]Sprite, error) {
	if h.SpriteCount == 0 {
		return nil, nil
	}
	sprites := make([]Sprite, h.SpriteCount)

	if err := c.SeekTo(int64(h.SpritesOffset)); err != nil {
		return nil, fmt.Errorf("sprites: %w", err)
	}
	for i := range sprites {
		if err := readSprite(c, &sprites[i]); err != nil {
			return nil, fmt.Errorf("sprite %d: %w", i, err)
		}
	}

	if h.SpriteNamesOffset != 0 {
		names, err := readNameTable(c, h.SpriteNamesOffset, len(sprites))
		if err != nil {
			return nil, fmt.Errorf("sprite names: %w", err)
		}
		for i, name := range names {
			sprites[i].Name = name
		}
	}

	if h.SpriteModesOffset != 0 {
		if err := c.SeekTo(int64(h.SpriteModesOffset)); err != nil {
			return nil, fmt.Errorf("sprite modes: %w", err)
		}
		for i := range sprites {
			mode, err := c.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("sprite modes: %w", err)
			}
			sprites[i].ResolutionMode = mode
		}
	}

	return sprites, nil
}

// readSprite reads one 40 byte sprite record.
func readSprite(c *Cursor, s *Sprite) error {
	var err error
	if s.TextureIndex, err = c.ReadU32(); err != nil {
		return err
	}
	if _, err = c.ReadU32(); err != nil { // reserved
		return err
	}

	var f [8]float32 // rect begin, rect end, x, y, width, height
	for i := range f {
		if f[i], err = c.ReadF32(); err != nil {
			return err
		}
	}
	s.RectBegin = [2]float32{f[0], f[1]}
	s.RectEnd = [2]float32{f[2], f[3]}

	dst := []*uint32{&s.X, &s.Y, &s.Width, &s.Height}
	for i, p := range dst {
		v, ok := pixelFromFloat(f[4+i])
		if !ok {
			return fmt.Errorf("%w: %v", ErrSpriteRect, f[4:])
		}
		*p = v
	}

	return nil
}

// readNameTable reads count absolute string offsets at offset and resolves
// them. Zero offsets yield empty names.
func readNameTable(c *Cursor, offset uint32, count int) ([]string, error) {
	if err := c.SeekTo(int64(offset)); err != nil {
		return nil, err
	}
	ptrs := make([]uint32, count)
	for i := range ptrs {
		p, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		ptrs[i] = p
	}

	names := make([]string, count)
	for i, p := range ptrs {
		if p == 0 {
			continue
		}
		name, err := c.ReadCStringAt(int64(p))
		if err != nil {
			return nil, fmt.Errorf("name %d: %w", i, err)
		}
		names[i] = name
	}

	return names, nil
}
