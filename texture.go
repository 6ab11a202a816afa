package divaspr

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/woozymasta/bcn"
	xdraw "golang.org/x/image/draw"
)

// Codec decodes block-compressed pixel data into an RGBA raster. It also
// receives RGBA8 payloads, which BCnCodec copies through its raw path.
// Implementations must be deterministic and safe for concurrent use.
type Codec interface {
	DecodeBlocks(format PixelFormat, width, height int, data []byte) (*image.NRGBA, error)
}

// BCnCodec decodes DXT payloads with github.com/woozymasta/bcn.
type BCnCodec struct {
	// Options are passed to the BCn decoder (e.g. Workers).
	Options *bcn.DecodeOptions
}

// DecodeBlocks implements Codec.
func (c BCnCodec) DecodeBlocks(format PixelFormat, width, height int, data []byte) (*image.NRGBA, error) {
	f := format.bcnFormat()
	if f == bcn.FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, format)
	}

	img, err := bcn.DecodeImageWithOptions(data, width, height, f, c.Options)
	if err != nil {
		return nil, err
	}

	return toNRGBA(img), nil
}

// toNRGBA returns img as a zero-origin *image.NRGBA. bcn normally returns
// one already, while a Codec may hand back an NRGBA sub-image. NRGBA rows
// are copied byte for byte; other image types from bcn go through xdraw.
func toNRGBA(img image.Image) *image.NRGBA {
	n, ok := img.(*image.NRGBA)
	if ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			src := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], n.Pix[src:src+rowLen])
		}
		return dst
	}
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)

	return dst
}

// decodeSubTexture turns one level into an upright RGBA raster.
func decodeSubTexture(codec Codec, sub *SubTexture) (*image.NRGBA, error) {
	w, h := int(sub.Width), int(sub.Height)

	expected := expectedDataLength(sub.Format, w, h)
	if expected < 0 || sub.Format.decodePath() == decodeUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, sub.Format)
	}
	if len(sub.Data) < expected {
		return nil, fmt.Errorf("%w: %s %dx%d needs %d bytes, have %d",
			ErrPixelDataSize, sub.Format, w, h, expected, len(sub.Data))
	}
	data := sub.Data[:expected]

	var (
		img *image.NRGBA
		err error
	)
	switch {
	case sub.Format.decodePath() == decodeBlock, sub.Format == PixelRGBA8:
		if img, err = codec.DecodeBlocks(sub.Format, w, h, data); err == nil && img != nil {
			img = toNRGBA(img)
		}
	default:
		img = expandRaw(sub.Format, w, h, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %dx%d: %v", ErrDecodeTexture, sub.Format, w, h, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: codec returned no image", ErrDecodeTexture)
	}
	if img.Rect.Dx() != w || img.Rect.Dy() != h {
		return nil, fmt.Errorf("%w: codec returned %dx%d for %dx%d",
			ErrDecodeTexture, img.Rect.Dx(), img.Rect.Dy(), w, h)
	}

	flipVertical(img)

	return img, nil
}

// expandRaw converts uncompressed single, dual and triple channel layouts.
func expandRaw(format PixelFormat, w, h int, data []byte) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	pix := img.Pix

	for i := 0; i < w*h; i++ {
		p := pix[i*4 : i*4+4 : i*4+4]
		switch format {
		case PixelRGB8:
			p[0], p[1], p[2], p[3] = data[i*3], data[i*3+1], data[i*3+2], 0xff
		case PixelL8A8:
			l := data[i*2]
			p[0], p[1], p[2], p[3] = l, l, l, data[i*2+1]
		case PixelL8:
			l := data[i]
			p[0], p[1], p[2], p[3] = l, l, l, 0xff
		case PixelA8:
			p[0], p[1], p[2], p[3] = 0xff, 0xff, 0xff, data[i]
		}
	}

	return img
}

// flipVertical mirrors img top to bottom in place.
func flipVertical(img *image.NRGBA) {
	h := img.Rect.Dy()
	rowLen := img.Rect.Dx() * 4
	tmp := make([]byte, rowLen)

	for top, bottom := 0, h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pix[top*img.Stride : top*img.Stride+rowLen]
		b := img.Pix[bottom*img.Stride : bottom*img.Stride+rowLen]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// textureFuture is the completion signal for one texture decode.
type textureFuture struct {
	done chan struct{}
	img  *image.NRGBA
	err  error
}

// TextureCache materializes decoded textures on first use and shares them
// between callers. It belongs to one export and is safe for concurrent use.
type TextureCache struct {
	set     *TextureSet
	codec   Codec
	futures map[uint32]*textureFuture
	mu      sync.Mutex
	decodes atomic.Int64
}

// NewTextureCache returns a cache over set. A nil codec selects BCnCodec.
func NewTextureCache(set *TextureSet, codec Codec) *TextureCache {
	if codec == nil {
		codec = BCnCodec{}
	}

	return &TextureCache{
		set:     set,
		codec:   codec,
		futures: make(map[uint32]*textureFuture),
	}
}

// Get returns the decoded base level of texture index. The first caller
// decodes; concurrent callers wait for that result. Failures are cached too.
func (tc *TextureCache) Get(ctx context.Context, index uint32) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int(index) >= tc.set.Len() {
		return nil, fmt.Errorf("%w: %d of %d", ErrTextureIndex, index, tc.set.Len())
	}

	tc.mu.Lock()
	f, ok := tc.futures[index]
	if !ok {
		f = &textureFuture{done: make(chan struct{})}
		tc.futures[index] = f
	}
	tc.mu.Unlock()

	if !ok {
		f.img, f.err = tc.decode(index)
		close(f.done)
		return f.img, f.err
	}

	select {
	case <-f.done:
		return f.img, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tc *TextureCache) decode(index uint32) (*image.NRGBA, error) {
	tc.decodes.Add(1)

	tex := tc.set.Textures[index]
	base := tex.Base()
	if base == nil {
		return nil, fmt.Errorf("texture %d: %w", index, ErrMissingBaseLevel)
	}

	img, err := decodeSubTexture(tc.codec, base)
	if err != nil {
		glog.Errorf("texture %d (%s): %v", index, tex.Name, err)
		return nil, fmt.Errorf("texture %d: %w", index, err)
	}
	glog.V(1).Infof("texture %d (%s): decoded %s %dx%d", index, tex.Name, base.Format, base.Width, base.Height)

	return img, nil
}

// Decodes returns how many textures have been decoded so far.
func (tc *TextureCache) Decodes() int {
	return int(tc.decodes.Load())
}
