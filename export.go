package divaspr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/woozymasta/bcn"
	"golang.org/x/sync/errgroup"
)

// ExportOptions configures sprite export. A nil *ExportOptions uses defaults.
type ExportOptions struct {
	// Encoder serializes each sprite; nil writes PNG.
	Encoder ImageEncoder
	// Codec decodes block-compressed textures; nil uses BCnCodec.
	Codec Codec
	// DecodeOptions are passed to the default BCn codec (e.g. Workers).
	DecodeOptions *bcn.DecodeOptions
	// Log receives one "Exported: ..." line per sprite; nil discards.
	Log io.Writer
	// Entry selects the archive entry holding the atlas; empty picks the
	// first entry that parses as one.
	Entry string
	// Workers bounds concurrent sprite exports; values below 1 mean 1.
	Workers int
	// Overwrite replaces existing files instead of picking a new name.
	Overwrite bool
}

func (o *ExportOptions) withDefaults() ExportOptions {
	var out ExportOptions
	if o != nil {
		out = *o
	}
	if out.Encoder == nil {
		out.Encoder = PNGEncoder{}
	}
	if out.Codec == nil {
		out.Codec = BCnCodec{Options: out.DecodeOptions}
	}
	if out.Log == nil {
		out.Log = io.Discard
	}
	if out.Workers < 1 {
		out.Workers = 1
	}

	return out
}

// ExportedSprite describes one written sprite image.
type ExportedSprite struct {
	Name        string
	Path        string
	TextureName string
	Sprite      Sprite
	Index       int
	Width       int
	Height      int
}

// LogLine returns the audit trail line for the sprite.
func (e *ExportedSprite) LogLine() string {
	return fmt.Sprintf("Exported: %s ((%d, %d)) x=%d,y=%d,w=%d,h=%d (%s)",
		e.Name, e.Width, e.Height, e.Sprite.X, e.Sprite.Y, e.Sprite.Width, e.Sprite.Height, e.TextureName)
}

// SpriteFailure records a sprite that could not be exported.
type SpriteFailure struct {
	Err         error
	Name        string
	TextureName string
	Index       int
}

func (f *SpriteFailure) Error() string {
	return fmt.Sprintf("sprite %d %q (%s): %v", f.Index, f.Name, f.TextureName, f.Err)
}

func (f *SpriteFailure) Unwrap() error { return f.Err }

// Report is the outcome of one export.
type Report struct {
	// Entry is the archive entry the atlas came from, empty for raw blobs.
	Entry         string
	Exported      []ExportedSprite
	Failed        []*SpriteFailure
	EntryFailures []*EntryError
	Sprites       int
	Textures      int
	Decoded       int
}

// Err summarizes sprite failures, wrapping the first one.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}

	return fmt.Errorf("%d of %d sprites exported, %d failed: %w",
		len(r.Exported), r.Sprites, len(r.Failed), r.Failed[0])
}

// ExportFile exports every sprite of an archive or raw atlas file into outDir.
func ExportFile(ctx context.Context, path, outDir string, opts *ExportOptions) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrOpenFile, path, err)
	}

	if IsArchive(data) {
		a, err := ParseArchive(data)
		if err != nil {
			return nil, err
		}
		return ExportArchive(ctx, a, outDir, opts)
	}

	atlas, err := ParseAtlas(data)
	if err != nil {
		return nil, err
	}

	return ExportAtlas(ctx, atlas, outDir, opts)
}

// ExportArchive locates the atlas entry of an archive and exports its sprites.
func ExportArchive(ctx context.Context, a *Archive, outDir string, opts *ExportOptions) (*Report, error) {
	var entry string
	if opts != nil {
		entry = opts.Entry
	}

	name, atlas, failures, err := FindAtlas(ctx, a, entry)
	if err != nil {
		return &Report{EntryFailures: failures}, err
	}

	report, err := ExportAtlas(ctx, atlas, outDir, opts)
	if report != nil {
		report.Entry = name
		report.EntryFailures = failures
	}

	return report, err
}

// FindAtlas returns the named entry parsed as an atlas, or with an empty
// name the first entry that parses as one. Entries that fail to extract are
// skipped and returned as failures.
func FindAtlas(ctx context.Context, a *Archive, name string) (string, *Atlas, []*EntryError, error) {
	if name != "" {
		e, err := a.Open(name)
		if err != nil {
			return "", nil, nil, err
		}
		atlas, err := ParseAtlas(e.Data)
		if err != nil {
			return "", nil, nil, fmt.Errorf("entry %q: %w", name, err)
		}
		return name, atlas, nil, nil
	}

	var (
		failures []*EntryError
		firstErr error
	)
	for _, h := range a.Headers {
		if err := ctx.Err(); err != nil {
			return "", nil, failures, err
		}

		e, err := a.Extract(h)
		if err != nil {
			glog.Errorf("skip archive entry %q: %v", h.Name, err)
			failures = append(failures, &EntryError{Name: h.Name, Err: err})
			continue
		}

		atlas, err := ParseAtlas(e.Data)
		if err != nil {
			glog.V(1).Infof("entry %q is not an atlas: %v", h.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("entry %q: %w", h.Name, err)
			}
			continue
		}

		return h.Name, atlas, failures, nil
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("%w: no usable entries in %s archive", ErrNotAtlas, a.Format)
	}

	return "", nil, failures, firstErr
}

// spriteJob is one planned sprite export.
type spriteJob struct {
	sprite      *Sprite
	name        string
	path        string
	textureName string
	index       int
}

// spriteResult is the outcome of one job.
type spriteResult struct {
	exported *ExportedSprite
	err      error
}

// ExportAtlas crops every sprite out of its decoded texture and writes it
// into outDir. Per-sprite failures are collected in the report; the error
// is non-nil only for setup failures and cancellation.
func ExportAtlas(ctx context.Context, atlas *Atlas, outDir string, opts *ExportOptions) (*Report, error) {
	o := opts.withDefaults()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCreateFile, outDir, err)
	}

	jobs := planSprites(atlas, outDir, o.Encoder.Ext(), o.Overwrite)
	cache := NewTextureCache(atlas.Textures, o.Codec)
	results := make([]spriteResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = exportSprite(gctx, cache, atlas, &jobs[i], o.Encoder)
			return nil
		})
	}
	waitErr := g.Wait()

	report := &Report{
		Sprites:  len(atlas.Sprites),
		Textures: atlas.Textures.Len(),
		Decoded:  cache.Decodes(),
	}
	for i, res := range results {
		switch {
		case res.exported != nil:
			if _, err := fmt.Fprintln(o.Log, res.exported.LogLine()); err != nil {
				glog.Warningf("export log: %v", err)
			}
			report.Exported = append(report.Exported, *res.exported)
		case res.err != nil:
			f := &SpriteFailure{
				Index:       jobs[i].index,
				Name:        jobs[i].name,
				TextureName: jobs[i].textureName,
				Err:         res.err,
			}
			glog.Errorf("%v", f)
			report.Failed = append(report.Failed, f)
		}
	}

	if waitErr == nil {
		waitErr = ctx.Err()
	}

	return report, waitErr
}

// exportSprite materializes the sprite's texture, crops and writes it.
func exportSprite(ctx context.Context, cache *TextureCache, atlas *Atlas, job *spriteJob, enc ImageEncoder) spriteResult {
	s := job.sprite
	if int(s.TextureIndex) >= atlas.Textures.Len() {
		return spriteResult{err: fmt.Errorf("%w: %d of %d", ErrTextureIndex, s.TextureIndex, atlas.Textures.Len())}
	}

	// Reject bad rectangles before paying for a texture decode.
	if base := atlas.Textures.Textures[s.TextureIndex].Base(); base != nil {
		if err := checkSpriteBounds(s, base.Width, base.Height); err != nil {
			return spriteResult{err: err}
		}
	}

	tex, err := cache.Get(ctx, s.TextureIndex)
	if err != nil {
		return spriteResult{err: err}
	}

	img, err := CropSprite(tex, s)
	if err != nil {
		return spriteResult{err: err}
	}

	if err := WriteImageFile(job.path, img, enc); err != nil {
		return spriteResult{err: err}
	}

	return spriteResult{exported: &ExportedSprite{
		Index:       job.index,
		Name:        job.name,
		Path:        job.path,
		TextureName: job.textureName,
		Sprite:      *s,
		Width:       img.Rect.Dx(),
		Height:      img.Rect.Dy(),
	}}
}

// planSprites assigns every sprite a unique output path. Duplicate names
// and existing files (unless overwrite) get a numeric suffix.
func planSprites(atlas *Atlas, outDir, ext string, overwrite bool) []spriteJob {
	jobs := make([]spriteJob, len(atlas.Sprites))
	used := make(map[string]struct{}, len(atlas.Sprites))

	taken := func(stem string) bool {
		if _, ok := used[strings.ToLower(stem)]; ok {
			return true
		}
		if overwrite {
			return false
		}
		_, err := os.Lstat(filepath.Join(outDir, stem+ext))
		return !errors.Is(err, os.ErrNotExist)
	}

	for i := range atlas.Sprites {
		s := &atlas.Sprites[i]

		base := s.Name
		if base == "" {
			base = fmt.Sprintf("sprite_%d_%d", s.TextureIndex, i)
		}
		base = sanitizeFileName(base)

		stem := base
		for n := 1; taken(stem); n++ {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		if stem != base {
			glog.Warningf("sprite %d: %q already used, writing %q", i, base+ext, stem+ext)
		}
		used[strings.ToLower(stem)] = struct{}{}

		jobs[i] = spriteJob{
			index:       i,
			sprite:      s,
			name:        stem,
			path:        filepath.Join(outDir, stem+ext),
			textureName: atlas.TextureName(s.TextureIndex),
		}
	}

	return jobs
}

// sanitizeFileName replaces characters that are unsafe in file names.
func sanitizeFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		default:
			return r
		}
	}, name)

	clean = strings.Trim(clean, " .")
	if clean == "" {
		return "_"
	}

	return clean
}
