package divaspr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func readPNG(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	return toNRGBA(img)
}

func TestExportFileArchive(t *testing.T) {
	t.Parallel()

	blob := buildAtlas(binary.BigEndian, redAtlas())
	archive := buildArchive(t, SignatureFArc, 0, []testEntry{
		{name: "readme.txt", data: []byte("not a sprite set")},
		{name: "spr_test.bin", data: blob},
	})
	in := writeTempFile(t, "spr_test.farc", archive)
	out := t.TempDir()

	var log bytes.Buffer
	report, err := ExportFile(context.Background(), in, out, &ExportOptions{Log: &log})
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v", err)
	}

	if got, want := log.String(), "Exported: A ((4, 4)) x=0,y=0,w=4,h=4 (TEX_RED)\n"; got != want {
		t.Fatalf("log = %q, want %q", got, want)
	}
	if report.Entry != "spr_test.bin" || report.Sprites != 1 || report.Decoded != 1 {
		t.Fatalf("report = %+v", report)
	}

	img := readPNG(t, filepath.Join(out, "A.png"))
	if img.Rect.Dx() != 4 || img.Rect.Dy() != 4 {
		t.Fatalf("size = %v", img.Rect)
	}
	for i := 0; i < len(img.Pix); i += 4 {
		if !bytes.Equal(img.Pix[i:i+4], []byte{0xff, 0, 0, 0xff}) {
			t.Fatalf("pixel %d = %v", i/4, img.Pix[i:i+4])
		}
	}
}

func TestExportFileRawBlobAndCompressedArchive(t *testing.T) {
	t.Parallel()

	blob := buildAtlas(binary.LittleEndian, redAtlas())
	inputs := map[string][]byte{
		"raw":     blob,
		"legacy":  buildArchive(t, SignatureFArC, 0, []testEntry{{name: "spr.bin", data: blob}}),
		"full-gz": buildArchive(t, SignatureFARC, farcFlagCompressed, []testEntry{{name: "spr.bin", data: blob}}),
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := writeTempFile(t, "input.bin", data)
			report, err := ExportFile(context.Background(), in, t.TempDir(), nil)
			if err != nil {
				t.Fatalf("ExportFile: %v", err)
			}
			if len(report.Exported) != 1 || report.Exported[0].Name != "A" {
				t.Fatalf("exported = %+v", report.Exported)
			}
		})
	}
}

func TestExportAtlasCropsUprightPixels(t *testing.T) {
	t.Parallel()

	// Stored pixel (x, row) is (x, row, 0, 255); row 0 is the bottom row.
	var data []byte
	for row := range 2 {
		for x := range 4 {
			data = append(data, byte(x), byte(row), 0, 0xff)
		}
	}
	atlas := testAtlas{
		textures: []testTexture{{name: "T", levels: []testLevel{{format: PixelRGBA8, width: 4, height: 2, data: data}}}},
		sprites:  []testSprite{{name: "top", x: 1, y: 0, w: 2, h: 1}, {name: "bottom", x: 3, y: 1, w: 1, h: 1}},
	}
	parsed, err := ParseAtlas(buildAtlas(binary.LittleEndian, atlas))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	out := t.TempDir()
	if _, err := ExportAtlas(context.Background(), parsed, out, nil); err != nil {
		t.Fatalf("ExportAtlas: %v", err)
	}

	top := readPNG(t, filepath.Join(out, "top.png"))
	if !bytes.Equal(top.Pix, []byte{1, 1, 0, 0xff, 2, 1, 0, 0xff}) {
		t.Fatalf("top = %v", top.Pix)
	}
	bottom := readPNG(t, filepath.Join(out, "bottom.png"))
	if !bytes.Equal(bottom.Pix, []byte{3, 0, 0, 0xff}) {
		t.Fatalf("bottom = %v", bottom.Pix)
	}
}

func TestExportAtlasNames(t *testing.T) {
	t.Parallel()

	atlas := redAtlas()
	atlas.sprites = []testSprite{
		{name: "A", w: 1, h: 1},
		{name: "A", x: 1, w: 1, h: 1},
		{name: "", x: 2, w: 1, h: 1},
		{name: "ui/btn:ok", x: 3, w: 1, h: 1},
	}
	parsed, err := ParseAtlas(buildAtlas(binary.LittleEndian, atlas))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	out := t.TempDir()
	var log bytes.Buffer
	report, err := ExportAtlas(context.Background(), parsed, out, &ExportOptions{Log: &log})
	if err != nil {
		t.Fatalf("ExportAtlas: %v", err)
	}

	want := []string{"A", "A_1", "sprite_0_2", "ui_btn_ok"}
	if len(report.Exported) != len(want) {
		t.Fatalf("exported %d, want %d", len(report.Exported), len(want))
	}
	for i, name := range want {
		if report.Exported[i].Name != name {
			t.Fatalf("sprite %d name = %q, want %q", i, report.Exported[i].Name, name)
		}
		if _, err := os.Stat(filepath.Join(out, name+".png")); err != nil {
			t.Fatalf("missing %s.png: %v", name, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	if len(lines) != 4 || lines[1] != "Exported: A_1 ((1, 1)) x=1,y=0,w=1,h=1 (TEX_RED)" {
		t.Fatalf("log = %q", lines)
	}
}

func TestExportAtlasExistingFiles(t *testing.T) {
	t.Parallel()

	parsed, err := ParseAtlas(buildAtlas(binary.LittleEndian, redAtlas()))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	tests := []struct {
		name      string
		overwrite bool
		want      string
	}{
		{name: "keep", overwrite: false, want: "A_1"},
		{name: "overwrite", overwrite: true, want: "A"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := t.TempDir()
			existing := filepath.Join(out, "A.png")
			if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			report, err := ExportAtlas(context.Background(), parsed, out, &ExportOptions{Overwrite: tc.overwrite})
			if err != nil {
				t.Fatalf("ExportAtlas: %v", err)
			}
			if report.Exported[0].Name != tc.want {
				t.Fatalf("name = %q, want %q", report.Exported[0].Name, tc.want)
			}

			old, _ := os.ReadFile(existing)
			if replaced := string(old) != "old"; replaced != tc.overwrite {
				t.Fatalf("existing file replaced = %v, want %v", replaced, tc.overwrite)
			}
		})
	}
}

func TestExportAtlasIsolatesFailures(t *testing.T) {
	t.Parallel()

	atlas := testAtlas{
		textures: []testTexture{
			{name: "GOOD", levels: []testLevel{{format: PixelRGBA8, width: 4, height: 4, data: solidRGBA8(4, 4, 0, 0xff, 0, 0xff)}}},
			{name: "BC7", levels: []testLevel{{format: PixelBC7, width: 4, height: 4, data: make([]byte, 16)}}},
		},
		sprites: []testSprite{
			{name: "ok", w: 2, h: 2},
			{name: "too_big", x: 3, y: 3, w: 4, h: 4},
			{name: "unsupported", texture: 1, w: 4, h: 4},
			{name: "ok2", x: 2, y: 2, w: 2, h: 2},
		},
	}
	parsed, err := ParseAtlas(buildAtlas(binary.BigEndian, atlas))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	var log bytes.Buffer
	report, err := ExportAtlas(context.Background(), parsed, t.TempDir(), &ExportOptions{Log: &log, Workers: 2})
	if err != nil {
		t.Fatalf("ExportAtlas: %v", err)
	}

	if len(report.Exported) != 2 || report.Exported[0].Name != "ok" || report.Exported[1].Name != "ok2" {
		t.Fatalf("exported = %+v", report.Exported)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("failed = %v", report.Failed)
	}
	if !errors.Is(report.Failed[0], ErrSpriteBounds) || report.Failed[0].Name != "too_big" {
		t.Fatalf("failure 0 = %v", report.Failed[0])
	}
	if !errors.Is(report.Failed[1], ErrUnsupportedPixelFormat) || report.Failed[1].TextureName != "BC7" {
		t.Fatalf("failure 1 = %v", report.Failed[1])
	}
	if !errors.Is(report.Err(), ErrOutOfBounds) {
		t.Fatalf("report.Err() = %v", report.Err())
	}
	if strings.Count(log.String(), "Exported: ") != 2 {
		t.Fatalf("log = %q", log.String())
	}
}

func TestExportAtlasWorkersDecodeOnce(t *testing.T) {
	t.Parallel()

	block := bytes.Repeat(dxt1Red, 4) // 8x8 DXT1
	atlas := testAtlas{
		textures: []testTexture{
			{name: "T0", levels: []testLevel{{format: PixelDXT1, width: 8, height: 8, data: block}}},
			{name: "T1", levels: []testLevel{{format: PixelDXT1, width: 8, height: 8, data: block}}},
		},
	}
	for i := range 40 {
		atlas.sprites = append(atlas.sprites, testSprite{
			name:    fmt.Sprintf("S%02d", i),
			texture: uint32(i % 2),
			x:       float32(i % 7),
			y:       float32(i % 5),
			w:       1,
			h:       2,
		})
	}
	parsed, err := ParseAtlas(buildAtlas(binary.LittleEndian, atlas))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	codec := &countingCodec{fill: color.NRGBA{R: 0xff, A: 0xff}}
	var log bytes.Buffer
	report, err := ExportAtlas(context.Background(), parsed, t.TempDir(), &ExportOptions{
		Codec:   codec,
		Log:     &log,
		Workers: 8,
	})
	if err != nil {
		t.Fatalf("ExportAtlas: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report: %v", err)
	}

	if got := codec.calls.Load(); got != 2 {
		t.Fatalf("codec calls = %d, want 2", got)
	}
	if report.Decoded != 2 {
		t.Fatalf("Decoded = %d, want 2", report.Decoded)
	}

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	if len(lines) != 40 {
		t.Fatalf("log lines = %d", len(lines))
	}
	for i, line := range lines {
		if prefix := fmt.Sprintf("Exported: S%02d ", i); !strings.HasPrefix(line, prefix) {
			t.Fatalf("line %d = %q, want prefix %q", i, line, prefix)
		}
	}
}

func TestExportAtlasCanceled(t *testing.T) {
	t.Parallel()

	parsed, err := ParseAtlas(buildAtlas(binary.LittleEndian, redAtlas()))
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := ExportAtlas(ctx, parsed, t.TempDir(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Exported) != 0 {
		t.Fatalf("exported %d sprites after cancel", len(report.Exported))
	}
}

func TestExportFileNotAtlas(t *testing.T) {
	t.Parallel()

	in := writeTempFile(t, "junk.farc", buildArchive(t, SignatureFArc, 0, []testEntry{{name: "a.txt", data: []byte("text")}}))
	_, err := ExportFile(context.Background(), in, t.TempDir(), nil)
	if !errors.Is(err, ErrNotAtlas) {
		t.Fatalf("expected ErrNotAtlas, got %v", err)
	}

	_, err = ExportFile(context.Background(), in, t.TempDir(), &ExportOptions{Entry: "missing.bin"})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "BTN_OK", want: "BTN_OK"},
		{in: `a\b/c`, want: "a_b_c"},
		{in: "x*y?z", want: "x_y_z"},
		{in: "..", want: "_"},
		{in: " name. ", want: "name"},
		{in: "tab\there", want: "tab_here"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			if got := sanitizeFileName(tc.in); got != tc.want {
				t.Fatalf("sanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
