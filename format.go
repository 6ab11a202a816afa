package divaspr

import (
	"fmt"

	"github.com/woozymasta/bcn"
)

// PixelFormat is the TXP subtexture pixel format tag.
type PixelFormat int32

// TXP pixel format tags.
const (
	PixelA8     PixelFormat = 0
	PixelRGB8   PixelFormat = 1
	PixelRGBA8  PixelFormat = 2
	PixelRGB5   PixelFormat = 3
	PixelRGB5A1 PixelFormat = 4
	PixelRGBA4  PixelFormat = 5
	PixelDXT1   PixelFormat = 6
	PixelDXT1a  PixelFormat = 7
	PixelDXT3   PixelFormat = 8
	PixelDXT5   PixelFormat = 9
	PixelATI1   PixelFormat = 10
	PixelATI2   PixelFormat = 11
	PixelL8     PixelFormat = 12
	PixelL8A8   PixelFormat = 13
	PixelBC7    PixelFormat = 15
	PixelBC6H   PixelFormat = 127
)

var pixelFormatNames = map[PixelFormat]string{
	PixelA8:     "A8",
	PixelRGB8:   "RGB8",
	PixelRGBA8:  "RGBA8",
	PixelRGB5:   "RGB5",
	PixelRGB5A1: "RGB5A1",
	PixelRGBA4:  "RGBA4",
	PixelDXT1:   "DXT1",
	PixelDXT1a:  "DXT1a",
	PixelDXT3:   "DXT3",
	PixelDXT5:   "DXT5",
	PixelATI1:   "ATI1",
	PixelATI2:   "ATI2",
	PixelL8:     "L8",
	PixelL8A8:   "L8A8",
	PixelBC7:    "BC7",
	PixelBC6H:   "BC6H",
}

func (f PixelFormat) String() string {
	if name, ok := pixelFormatNames[f]; ok {
		return name
	}

	return fmt.Sprintf("UNKNOWN_%d", int32(f))
}

// pixelDecodePath selects how a pixel format becomes RGBA.
type pixelDecodePath int

const (
	decodeUnsupported pixelDecodePath = iota
	decodeBlock                       // codec service
	decodeRaw                         // direct channel expansion
)

func (f PixelFormat) decodePath() pixelDecodePath {
	switch f {
	case PixelDXT1, PixelDXT1a, PixelDXT5:
		return decodeBlock
	case PixelRGBA8, PixelRGB8, PixelA8, PixelL8, PixelL8A8:
		return decodeRaw
	default:
		return decodeUnsupported
	}
}

// bcnFormat maps block-compressed tags onto the codec format.
func (f PixelFormat) bcnFormat() bcn.Format {
	switch f {
	case PixelDXT1, PixelDXT1a:
		return bcn.FormatDXT1
	case PixelDXT5:
		return bcn.FormatDXT5
	case PixelRGBA8:
		return bcn.FormatRGBA8
	default:
		return bcn.FormatUnknown
	}
}

// expectedDataLength returns the payload size of one level, or -1 for
// formats without a decode path.
func expectedDataLength(format PixelFormat, width, height int) int {
	blocksW := (width + 3) / 4
	blocksH := (height + 3) / 4
	switch format {
	case PixelDXT1, PixelDXT1a:
		return blocksW * blocksH * 8
	case PixelDXT5:
		return blocksW * blocksH * 16
	case PixelRGBA8:
		return width * height * 4
	case PixelRGB8:
		return width * height * 3
	case PixelL8A8:
		return width * height * 2
	case PixelA8, PixelL8:
		return width * height
	default:
		return -1
	}
}
