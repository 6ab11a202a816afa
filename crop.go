package divaspr

import (
	"fmt"
	"image"
)

// Rect returns the sprite rectangle in texture pixel space.
func (s *Sprite) Rect() image.Rectangle {
	x0, y0 := int(s.X), int(s.Y)
	return image.Rect(x0, y0, x0+int(s.Width), y0+int(s.Height))
}

// checkSpriteBounds verifies the sprite lies inside a width x height texture.
func checkSpriteBounds(s *Sprite, width, height uint32) error {
	if s.Width == 0 || s.Height == 0 ||
		uint64(s.X)+uint64(s.Width) > uint64(width) ||
		uint64(s.Y)+uint64(s.Height) > uint64(height) {
		return fmt.Errorf("%w: x=%d,y=%d,w=%d,h=%d in %dx%d",
			ErrSpriteBounds, s.X, s.Y, s.Width, s.Height, width, height)
	}

	return nil
}

// CropSprite copies the sprite rectangle out of an upright texture raster.
// The result has its own pixel buffer and a zero origin. Pixels are copied
// byte for byte; no color model conversion happens.
func CropSprite(tex *image.NRGBA, s *Sprite) (*image.NRGBA, error) {
	b := tex.Bounds()
	if err := checkSpriteBounds(s, uint32(b.Dx()), uint32(b.Dy())); err != nil {
		return nil, err
	}

	r := s.Rect().Add(b.Min)
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		src := tex.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], tex.Pix[src:src+rowLen])
	}

	return dst, nil
}
