package divaspr

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/tiff"
)

// ImageEncoder serializes a sprite raster. Encoders must keep the alpha
// channel bit-exact.
type ImageEncoder interface {
	// Ext returns the file extension including the dot.
	Ext() string
	Encode(w io.Writer, img *image.NRGBA) error
}

// PNGEncoder writes PNG files.
type PNGEncoder struct {
	// CompressionLevel is passed to image/png.
	CompressionLevel png.CompressionLevel
}

// Ext implements ImageEncoder.
func (PNGEncoder) Ext() string { return ".png" }

// Encode implements ImageEncoder.
func (e PNGEncoder) Encode(w io.Writer, img *image.NRGBA) error {
	enc := png.Encoder{CompressionLevel: e.CompressionLevel}
	return enc.Encode(w, img)
}

// TIFFEncoder writes TIFF files with unassociated alpha.
type TIFFEncoder struct {
	// Deflate enables deflate compression of the strips.
	Deflate bool
}

// Ext implements ImageEncoder.
func (TIFFEncoder) Ext() string { return ".tiff" }

// Encode implements ImageEncoder.
func (e TIFFEncoder) Encode(w io.Writer, img *image.NRGBA) error {
	opts := &tiff.Options{Compression: tiff.Uncompressed}
	if e.Deflate {
		opts.Compression = tiff.Deflate
	}

	return tiff.Encode(w, img, opts)
}

var imageEncoders = map[string]ImageEncoder{
	"png":  PNGEncoder{},
	"tiff": TIFFEncoder{Deflate: true},
	"edds": EDDSEncoder{Compress: true},
}

// EncoderByName returns a registered output encoder ("png", "tiff", "edds").
func EncoderByName(name string) (ImageEncoder, error) {
	enc, ok := imageEncoders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownImageFormat, name, strings.Join(EncoderNames(), ", "))
	}

	return enc, nil
}

// EncoderNames lists the registered encoder names.
func EncoderNames() []string {
	names := make([]string, 0, len(imageEncoders))
	for name := range imageEncoders {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// imageFileMode is the permission of written sprite files; CreateTemp
// alone would leave them owner-only.
const imageFileMode = 0o644

// WriteImageFile encodes img into path atomically: the data goes to a
// temporary file in the same directory that is renamed into place only
// after a successful encode and close.
func WriteImageFile(path string, img *image.NRGBA, enc ImageEncoder) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".divaspr_*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = enc.Encode(tmp, img); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrEncodeImage, path, err)
	}
	if err = tmp.Chmod(imageFileMode); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCreateFile, path, err)
	}

	return nil
}
