package divaspr

import "encoding/binary"

// TextureSummary describes one texture of an atlas.
type TextureSummary struct {
	Name       string `json:"name"`
	BaseFormat string `json:"base_format,omitempty"`
	Index      int    `json:"index"`
	ArraySize  int    `json:"array_size"`
	MipCount   int    `json:"mip_count"`
	BaseWidth  uint32 `json:"base_width,omitempty"`
	BaseHeight uint32 `json:"base_height,omitempty"`
}

// SpriteSummary describes one sprite of an atlas.
type SpriteSummary struct {
	Name           string `json:"name"`
	Index          int    `json:"index"`
	TextureIndex   uint32 `json:"texture_index"`
	X              uint32 `json:"x"`
	Y              uint32 `json:"y"`
	Width          uint32 `json:"width"`
	Height         uint32 `json:"height"`
	ResolutionMode uint32 `json:"resolution_mode"`
}

// AtlasSummary is a JSON friendly view of a parsed atlas.
type AtlasSummary struct {
	ByteOrder string           `json:"byte_order"`
	Textures  []TextureSummary `json:"textures"`
	Sprites   []SpriteSummary  `json:"sprites"`
}

// Summary returns a description of the atlas without pixel data.
func (a *Atlas) Summary() AtlasSummary {
	sum := AtlasSummary{
		ByteOrder: "little",
		Textures:  make([]TextureSummary, 0, a.Textures.Len()),
		Sprites:   make([]SpriteSummary, 0, len(a.Sprites)),
	}
	if a.Order == binary.BigEndian {
		sum.ByteOrder = "big"
	}

	for i, tex := range a.Textures.Textures {
		sum.Textures = append(sum.Textures, textureSummary(i, a.TextureName(uint32(i)), tex))
	}

	for i, s := range a.Sprites {
		sum.Sprites = append(sum.Sprites, SpriteSummary{
			Index:          i,
			Name:           s.Name,
			TextureIndex:   s.TextureIndex,
			X:              s.X,
			Y:              s.Y,
			Width:          s.Width,
			Height:         s.Height,
			ResolutionMode: s.ResolutionMode,
		})
	}

	return sum
}

func textureSummary(index int, name string, tex *Texture) TextureSummary {
	ts := TextureSummary{
		Index:     index,
		Name:      name,
		ArraySize: tex.ArraySize,
		MipCount:  tex.MipCount,
	}
	if base := tex.Base(); base != nil {
		ts.BaseWidth = base.Width
		ts.BaseHeight = base.Height
		ts.BaseFormat = base.Format.String()
	}

	return ts
}
