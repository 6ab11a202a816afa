package divaspr

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// testLevel is one subtexture written by buildAtlas.
type testLevel struct {
	data   []byte
	format PixelFormat
	width  int
	height int
}

// testTexture is a single-slice texture; no levels writes a zero offset.
type testTexture struct {
	name   string
	levels []testLevel
}

type testSprite struct {
	name       string
	texture    uint32
	x, y, w, h float32
	mode       uint32
}

type testAtlas struct {
	textures []testTexture
	sprites  []testSprite
}

// buildAtlas serializes a sprite set blob in the given byte order.
// Layout: header, sprite records, modes, name tables, strings, texture set.
func buildAtlas(order binary.ByteOrder, a testAtlas) []byte {
	c := NewCursor(nil, order)
	for range 8 {
		c.WriteU32(0)
	}

	spritesOff := c.Pos()
	for _, s := range a.sprites {
		c.WriteU32(s.texture)
		c.WriteU32(0)
		c.WriteF32(s.x)
		c.WriteF32(s.y)
		c.WriteF32(s.x + s.w)
		c.WriteF32(s.y + s.h)
		for _, v := range []float32{s.x, s.y, s.w, s.h} {
			c.WriteF32(v)
		}
	}

	modesOff := c.Pos()
	for _, s := range a.sprites {
		c.WriteU32(s.mode)
	}

	texNamesOff := c.Pos()
	for range a.textures {
		c.WriteU32(0)
	}
	spriteNamesOff := c.Pos()
	for range a.sprites {
		c.WriteU32(0)
	}

	writeNames := func(table int, names []string) {
		for i, name := range names {
			if name == "" {
				continue
			}
			at := c.Pos()
			c.WriteCString(name)
			end := c.Pos()
			_ = c.SeekTo(int64(table + i*4))
			c.WriteU32(uint32(at))
			_ = c.SeekTo(int64(end))
		}
	}
	texNames := make([]string, len(a.textures))
	for i, tex := range a.textures {
		texNames[i] = tex.name
	}
	spriteNames := make([]string, len(a.sprites))
	for i, s := range a.sprites {
		spriteNames[i] = s.name
	}
	writeNames(texNamesOff, texNames)
	writeNames(spriteNamesOff, spriteNames)

	c.PadTo(16)
	setOff := c.Pos()
	writeTextureSet(c, a.textures)

	header := []uint32{
		0,
		uint32(setOff),
		uint32(len(a.textures)),
		uint32(len(a.sprites)),
		uint32(spritesOff),
		uint32(texNamesOff),
		uint32(spriteNamesOff),
		uint32(modesOff),
	}
	if len(a.sprites) == 0 {
		header[4], header[6], header[7] = 0, 0, 0
	}
	if len(a.textures) == 0 {
		header[5] = 0
	}
	_ = c.SeekTo(0)
	for _, v := range header {
		c.WriteU32(v)
	}

	return c.Bytes()
}

// writeTextureSet writes a TXP set at the cursor. Offsets are relative
// to the set and texture starts.
func writeTextureSet(c *Cursor, textures []testTexture) {
	base := c.Pos()
	c.WriteU32(txpTextureSetSig)
	c.WriteI32(int32(len(textures)))
	c.WriteI32(int32(len(textures)))
	table := c.Pos()
	for range textures {
		c.WriteU32(0)
	}

	for i, tex := range textures {
		if len(tex.levels) == 0 {
			continue
		}
		c.PadTo(4)
		texOff := c.Pos()
		_ = c.SeekTo(int64(table + i*4))
		c.WriteU32(uint32(texOff - base))
		_ = c.SeekTo(int64(texOff))

		c.WriteU32(txpTextureV4Sig)
		c.WriteI32(int32(len(tex.levels)))
		c.WriteU32(uint32(len(tex.levels)) | 1<<8)
		levelTable := c.Pos()
		for range tex.levels {
			c.WriteU32(0)
		}

		for m, lvl := range tex.levels {
			c.PadTo(4)
			subOff := c.Pos()
			_ = c.SeekTo(int64(levelTable + m*4))
			c.WriteU32(uint32(subOff - texOff))
			_ = c.SeekTo(int64(subOff))

			c.WriteU32(txpSubTextureSig)
			c.WriteI32(int32(lvl.width))
			c.WriteI32(int32(lvl.height))
			c.WriteI32(int32(lvl.format))
			c.WriteI32(int32(m))
			c.WriteI32(int32(len(lvl.data)))
			c.WriteBytes(lvl.data)
		}
	}
}

type testEntry struct {
	name string
	data []byte
	// raw is written as the payload instead of gzip(data) in compressed forms.
	raw []byte
}

// buildArchive serializes an archive with the given signature. FArC
// payloads and FARC payloads with the compressed flag are gzip data.
func buildArchive(t testing.TB, sig string, flags uint32, entries []testEntry) []byte {
	t.Helper()

	compressed := sig == SignatureFArC || (sig == SignatureFARC && flags&farcFlagCompressed != 0)
	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		switch {
		case e.raw != nil:
			payloads[i] = e.raw
		case compressed:
			payloads[i] = gzipBytes(t, e.data)
		default:
			payloads[i] = e.data
		}
	}

	fields := 3
	if sig == SignatureFArc {
		fields = 2
	}
	tail := 4 // alignment
	if sig == SignatureFARC {
		tail = 20 // flags, padding, alignment, entry padding, header padding
	}
	tableSize := 0
	for _, e := range entries {
		tableSize += len(e.name) + 1 + 4*fields
	}
	headerSize := tail + tableSize

	c := NewCursor(nil, binary.BigEndian)
	c.WriteBytes([]byte(sig))
	c.WriteU32(uint32(headerSize))
	if sig == SignatureFARC {
		c.WriteU32(flags)
		c.WriteU32(0)
		c.WriteU32(16)
		c.WriteU32(0)
		c.WriteU32(0)
	} else {
		c.WriteU32(16)
	}

	offset := farcPreamble + headerSize
	for i, e := range entries {
		c.WriteCString(e.name)
		c.WriteU32(uint32(offset))
		c.WriteU32(uint32(len(payloads[i])))
		if fields == 3 {
			c.WriteU32(uint32(len(e.data)))
		}
		offset += len(payloads[i])
	}
	for _, p := range payloads {
		c.WriteBytes(p)
	}

	return c.Bytes()
}

func gzipBytes(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	return buf.Bytes()
}

// solidRGBA8 returns a w x h RGBA8 payload filled with one color.
func solidRGBA8(w, h int, r, g, b, a byte) []byte {
	data := make([]byte, 0, w*h*4)
	for range w * h {
		data = append(data, r, g, b, a)
	}

	return data
}

// redAtlas is a 4x4 red RGBA8 texture with one full-size sprite "A".
func redAtlas() testAtlas {
	return testAtlas{
		textures: []testTexture{{
			name:   "TEX_RED",
			levels: []testLevel{{format: PixelRGBA8, width: 4, height: 4, data: solidRGBA8(4, 4, 0xff, 0, 0, 0xff)}},
		}},
		sprites: []testSprite{{name: "A", texture: 0, w: 4, h: 4}},
	}
}
