package divaspr

import (
	"errors"
	"fmt"
)

// Error kinds. Parse and decode errors match exactly one of them with errors.Is.
var (
	// ErrInvalidFormat indicates an unrecognized or structurally broken archive or atlas.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrNotSupported indicates a recognized but unsupported feature (encryption, pixel format).
	ErrNotSupported = errors.New("not supported")
	// ErrCorruptData indicates a payload that failed to decompress or decode.
	ErrCorruptData = errors.New("corrupt data")
	// ErrOutOfBounds indicates a sprite rectangle outside its texture.
	ErrOutOfBounds = errors.New("out of bounds")
)

var (
	// ErrUnexpectedEOF indicates a read past the end of a buffer.
	ErrUnexpectedEOF = fmt.Errorf("%w: unexpected end of data", ErrInvalidFormat)
	// ErrSeekOutOfRange indicates a seek outside a buffer.
	ErrSeekOutOfRange = fmt.Errorf("%w: seek out of range", ErrInvalidFormat)
	// ErrUnknownSignature indicates an unknown archive signature.
	ErrUnknownSignature = fmt.Errorf("%w: unknown archive signature", ErrInvalidFormat)
	// ErrArchiveHeader indicates a malformed archive header.
	ErrArchiveHeader = fmt.Errorf("%w: malformed archive header", ErrInvalidFormat)
	// ErrEntryTable indicates a malformed archive entry table.
	ErrEntryTable = fmt.Errorf("%w: malformed entry table", ErrInvalidFormat)
	// ErrEntryNotFound indicates a missing archive entry.
	ErrEntryNotFound = fmt.Errorf("%w: entry not found", ErrInvalidFormat)
	// ErrEncryptedArchive indicates an encrypted FARC archive.
	ErrEncryptedArchive = fmt.Errorf("%w: encrypted archive", ErrNotSupported)
	// ErrEntryRange indicates an entry payload outside the archive.
	ErrEntryRange = fmt.Errorf("%w: entry payload out of range", ErrCorruptData)
	// ErrInflate indicates a gzip payload failed to decompress.
	ErrInflate = fmt.Errorf("%w: inflate failed", ErrCorruptData)
	// ErrEntrySizeMismatch indicates a decompressed entry size mismatch.
	ErrEntrySizeMismatch = fmt.Errorf("%w: entry size mismatch", ErrCorruptData)

	// ErrNotAtlas indicates a blob that parses as a sprite set in neither byte order.
	ErrNotAtlas = fmt.Errorf("%w: not a sprite atlas", ErrInvalidFormat)
	// ErrAmbiguousByteOrder indicates a blob that validates in both byte orders.
	ErrAmbiguousByteOrder = fmt.Errorf("%w: ambiguous byte order", ErrInvalidFormat)
	// ErrSpriteSetHeader indicates an implausible sprite set header.
	ErrSpriteSetHeader = fmt.Errorf("%w: implausible sprite set header", ErrInvalidFormat)
	// ErrTXPSignature indicates a wrong TXP section signature.
	ErrTXPSignature = fmt.Errorf("%w: bad TXP signature", ErrInvalidFormat)
	// ErrTXPCount indicates an implausible count inside a TXP section.
	ErrTXPCount = fmt.Errorf("%w: implausible TXP count", ErrInvalidFormat)
	// ErrSpriteRect indicates a negative or non-finite sprite coordinate.
	ErrSpriteRect = fmt.Errorf("%w: bad sprite rectangle", ErrInvalidFormat)
	// ErrTextureIndex indicates a sprite referencing a missing texture.
	ErrTextureIndex = fmt.Errorf("%w: texture index out of range", ErrInvalidFormat)

	// ErrUnsupportedPixelFormat indicates a pixel format without a decode path.
	ErrUnsupportedPixelFormat = fmt.Errorf("%w: pixel format", ErrNotSupported)
	// ErrMissingBaseLevel indicates a texture without a level 0 subtexture.
	ErrMissingBaseLevel = fmt.Errorf("%w: missing base mip level", ErrCorruptData)
	// ErrPixelDataSize indicates a subtexture payload shorter than its dimensions require.
	ErrPixelDataSize = fmt.Errorf("%w: pixel data size mismatch", ErrCorruptData)
	// ErrDecodeTexture indicates the codec failed on a texture.
	ErrDecodeTexture = fmt.Errorf("%w: decode texture failed", ErrCorruptData)
	// ErrSpriteBounds indicates a sprite rectangle exceeding its texture.
	ErrSpriteBounds = fmt.Errorf("%w: sprite exceeds texture", ErrOutOfBounds)

	// ErrUnknownImageFormat indicates an unknown output image format name.
	ErrUnknownImageFormat = fmt.Errorf("%w: output image format", ErrNotSupported)
	// ErrSizeOverflow indicates a size or dimension exceeds supported limits.
	ErrSizeOverflow = fmt.Errorf("%w: size overflow", ErrInvalidFormat)
	// ErrLZ4Compress indicates LZ4 compression failed.
	ErrLZ4Compress = errors.New("LZ4 compression failed")
	// ErrChunkTooLarge indicates a compressed chunk exceeds allowed size.
	ErrChunkTooLarge = errors.New("compressed chunk too large")
	// ErrEncodeImage indicates output image encoding failed.
	ErrEncodeImage = errors.New("encode image failed")
	// ErrCreateFile indicates output file creation failed.
	ErrCreateFile = errors.New("create file failed")
	// ErrOpenFile indicates input file open failed.
	ErrOpenFile = errors.New("open file failed")
)
