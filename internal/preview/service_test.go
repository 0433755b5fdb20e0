package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openroom/internal/adjust"
	"openroom/internal/decode"
	"openroom/internal/memory"
	"openroom/internal/raster"
	"openroom/internal/recipe"
	"openroom/internal/resize"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func newTestService(t *testing.T, thumbDir string) *Service {
	t.Helper()
	return NewService(
		decode.NewChain(decode.ImagingBackend(), decode.MemoryBackend()),
		resize.New(nil),
		adjust.New(nil),
		Options{ThumbnailDir: thumbDir, PreviewWorkers: 2, ThumbnailWorkers: 2},
	)
}

func TestRenderPreviewIdentityMatchesScaledPreview(t *testing.T) {
	path := writePNG(t, t.TempDir(), 1200, 800)
	svc := newTestService(t, "")
	ctx := context.Background()

	plain, err := svc.RenderPreview(ctx, "a", path, 600, nil)
	require.NoError(t, err)
	zero, err := svc.RenderPreview(ctx, "a", path, 600, recipe.New())
	require.NoError(t, err)

	base, err := svc.Cache().Variant("a", path, 600)
	require.NoError(t, err)
	want, err := Encode(base)
	require.NoError(t, err)

	assert.Equal(t, want, plain)
	assert.Equal(t, want, zero)
	assert.Equal(t, 600, decodePNG(t, plain).Bounds().Dx())
}

func TestRenderPreviewAppliesRecipe(t *testing.T) {
	path := writePNG(t, t.TempDir(), 1200, 800)
	svc := newTestService(t, "")
	ctx := context.Background()

	plain, err := svc.RenderPreview(ctx, "a", path, 600, nil)
	require.NoError(t, err)

	rec := recipe.New()
	rec.Globals.ExposureEV = 1
	bright, err := svc.RenderPreview(ctx, "a", path, 600, rec)
	require.NoError(t, err)

	assert.NotEqual(t, plain, bright)

	// The cached base stays pristine after grading.
	again, err := svc.RenderPreview(ctx, "a", path, 600, nil)
	require.NoError(t, err)
	assert.Equal(t, plain, again)
}

func TestRenderPreviewDefaultDimension(t *testing.T) {
	path := writePNG(t, t.TempDir(), 2000, 1000)
	svc := newTestService(t, "")

	data, err := svc.RenderPreview(context.Background(), "a", path, 0, nil)
	require.NoError(t, err)

	b := decodePNG(t, data).Bounds()
	assert.Equal(t, DefaultPreviewDimension, b.Dx())
	assert.Equal(t, DefaultPreviewDimension/2, b.Dy())
}

func TestRenderPreviewPropagatesDecodeError(t *testing.T) {
	svc := newTestService(t, "")
	path := filepath.Join(t.TempDir(), "missing.png")

	_, err := svc.RenderPreview(context.Background(), "a", path, 800, nil)

	var de *decode.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, path, de.Path)
}

func TestRenderPreviewHonoursContext(t *testing.T) {
	svc := newTestService(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RenderPreview(ctx, "a", "/nowhere.png", 800, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderPreviewRecordsTrace(t *testing.T) {
	path := writePNG(t, t.TempDir(), 1200, 800)
	svc := newTestService(t, "")

	render := func(dim int, rec *recipe.EditRecipe) *Trace {
		ctx, trace := WithTrace(context.Background())
		_, err := svc.RenderPreview(ctx, "a", path, dim, rec)
		require.NoError(t, err)
		return trace
	}

	first := render(600, nil)
	assert.Equal(t, "preview", first.Kind)
	assert.Equal(t, "a", first.AssetID)
	assert.Equal(t, TierDecoded, first.Tier)
	assert.Equal(t, adjust.GradingNone, first.Grading)

	assert.Equal(t, TierVariant, render(600, nil).Tier)
	assert.Equal(t, TierScaled, render(700, nil).Tier)
	assert.Equal(t, TierMaster, render(1200, nil).Tier)

	rec := recipe.New()
	rec.Globals.ExposureEV = 1
	assert.Equal(t, adjust.GradingCPU, render(600, rec).Grading)
}

func TestThumbnailRecordsTrace(t *testing.T) {
	path := writePNG(t, t.TempDir(), 900, 600)
	svc := newTestService(t, t.TempDir())

	thumb := func(assetID, path string) *Trace {
		ctx, trace := WithTrace(context.Background())
		_, err := svc.Thumbnail(ctx, assetID, path)
		require.NoError(t, err)
		return trace
	}

	assert.Equal(t, TierDecoded, thumb("a", path).Tier)
	again := thumb("a", path)
	assert.Equal(t, "thumbnail", again.Kind)
	assert.Equal(t, TierDisk, again.Tier)
	assert.Equal(t, TierPlaceholder, thumb("b", filepath.Join(t.TempDir(), "gone.nef")).Tier)
}

func TestRenderWaitsOutMemoryPressure(t *testing.T) {
	cfg := memory.DefaultConfig()
	cfg.MemoryLimitBytes = 1 << 10
	cfg.CheckInterval = 10 * time.Millisecond
	monitor := memory.NewMonitor(cfg)
	t.Cleanup(monitor.Stop)

	svc := NewService(
		decode.NewChain(decode.ImagingBackend()),
		resize.New(nil),
		adjust.New(nil),
		Options{PreviewWorkers: 1, ThumbnailWorkers: 1, Memory: monitor},
	)
	path := writePNG(t, t.TempDir(), 64, 64)

	_, err := svc.RenderPreview(context.Background(), "a", path, 480, nil)
	require.NoError(t, err)

	// Force the monitor over its critical mark.
	monitor.Start()
	require.Eventually(t, monitor.IsPaused, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.RenderPreview(ctx, "a", path, 480, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThumbnailRendersAndPersists(t *testing.T) {
	srcDir := t.TempDir()
	thumbDir := t.TempDir()
	path := writePNG(t, srcDir, 900, 600)
	svc := newTestService(t, thumbDir)
	ctx := context.Background()

	data, err := svc.Thumbnail(ctx, "asset-1", path)
	require.NoError(t, err)

	b := decodePNG(t, data).Bounds()
	assert.Equal(t, ThumbnailDimension, b.Dx())
	assert.Equal(t, 240, b.Dy())

	stored, err := os.ReadFile(filepath.Join(thumbDir, "asset-1.png"))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	// Served from disk once stored, even if the source disappears.
	require.NoError(t, os.Remove(path))
	again, err := svc.Thumbnail(ctx, "asset-1", path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestThumbnailNeverUpscales(t *testing.T) {
	path := writePNG(t, t.TempDir(), 200, 100)
	svc := newTestService(t, "")

	data, err := svc.Thumbnail(context.Background(), "small", path)
	require.NoError(t, err)

	assert.Equal(t, 200, decodePNG(t, data).Bounds().Dx())
}

func TestThumbnailFallsBackToPlaceholder(t *testing.T) {
	thumbDir := t.TempDir()
	svc := newTestService(t, thumbDir)

	data, err := svc.Thumbnail(context.Background(), "broken", filepath.Join(t.TempDir(), "missing.cr2"))
	require.NoError(t, err)

	b := decodePNG(t, data).Bounds()
	assert.Equal(t, ThumbnailDimension, b.Dx())
	assert.Equal(t, 240, b.Dy())
	assert.FileExists(t, filepath.Join(thumbDir, "broken.png"))
}

func TestThumbnailWithoutStore(t *testing.T) {
	path := writePNG(t, t.TempDir(), 900, 600)
	svc := newTestService(t, "")

	data, err := svc.Thumbnail(context.Background(), "a", path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.False(t, svc.Thumbnails().Enabled())
}

func TestThumbnailSurvivesJoinedCallerCancel(t *testing.T) {
	path := writePNG(t, t.TempDir(), 720, 480)
	svc := NewService(
		decode.NewChain(decode.ImagingBackend()),
		resize.New(nil),
		adjust.New(nil),
		Options{ThumbnailDir: t.TempDir(), PreviewWorkers: 1, ThumbnailWorkers: 1},
	)

	// Occupy the only thumbnail slot so both callers queue on one render.
	release := make(chan struct{})
	busy := make(chan struct{})
	go func() {
		_ = svc.thumbnailPool.Do(context.Background(), func() error {
			close(busy)
			<-release
			return nil
		})
	}()
	<-busy

	type result struct {
		data []byte
		err  error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		data, err := svc.Thumbnail(ctx, "asset", path)
		first <- result{data, err}
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		data, err := svc.Thumbnail(context.Background(), "asset", path)
		second <- result{data, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case r := <-first:
		assert.ErrorIs(t, r.err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		img := decodePNG(t, r.data)
		assert.Equal(t, 360, img.Bounds().Dx())
		assert.Equal(t, 240, img.Bounds().Dy())
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}
}

func TestThumbnailStoreRejectsPathLikeIDs(t *testing.T) {
	store := NewThumbnailStore(t.TempDir())

	for _, id := range []string{"", ".", "..", "../escape", `a\b`, "a/b"} {
		_, err := store.Path(id)
		assert.ErrorIs(t, err, errInvalidAssetID, "id %q", id)
	}
}

func TestThumbnailStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewThumbnailStore(dir)

	require.NoError(t, store.Save("x", []byte("one")))
	require.NoError(t, store.Save("x", []byte("two")))

	data, ok := store.Load("x")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.png", entries[0].Name())
}

func TestClearCacheAndStats(t *testing.T) {
	path := writePNG(t, t.TempDir(), 1200, 800)
	svc := newTestService(t, "")

	_, err := svc.RenderPreview(context.Background(), "a", path, 600, nil)
	require.NoError(t, err)

	stats := svc.GetStats()
	assert.Equal(t, 1, stats.ResidentMasters)
	assert.Equal(t, 1, stats.Variants)
	assert.Zero(t, stats.PreviewJobs)
	assert.Zero(t, stats.ThumbnailJobs)

	svc.ClearCache()
	stats = svc.GetStats()
	assert.Zero(t, stats.ResidentMasters)
	assert.Zero(t, stats.Variants)
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder()
	require.Equal(t, 480, img.Width)
	require.Equal(t, 320, img.Height)

	r, g, b, a := img.At(0, 0)
	assert.Equal(t, [4]uint8{220, 230, 245, 255}, [4]uint8{r, g, b, a})

	r, g, b, _ = img.At(479, 319)
	assert.InDelta(t, 180, int(r), 1)
	assert.InDelta(t, 170, int(g), 1)
	assert.InDelta(t, 165, int(b), 1)
}

func TestEncodeRoundTrip(t *testing.T) {
	src := raster.New(3, 2)
	src.Set(0, 0, 255, 0, 0, 255)
	src.Set(2, 1, 10, 20, 30, 40)

	data, err := Encode(src)
	require.NoError(t, err)

	back := raster.FromImage(decodePNG(t, data))
	assert.Equal(t, src.Pix, back.Pix)
}

func TestEncodeWritesRGBA8(t *testing.T) {
	opaque := raster.New(4, 4)
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}

	data, err := Encode(opaque)
	require.NoError(t, err)

	// IHDR: bit depth at byte 24, colour type at byte 25.
	require.Greater(t, len(data), 25)
	assert.Equal(t, "IHDR", string(data[12:16]))
	assert.Equal(t, byte(8), data[24], "bit depth")
	assert.Equal(t, byte(6), data[25], "colour type RGBA")

	_, isNRGBA := decodePNG(t, data).(*image.NRGBA)
	assert.True(t, isNRGBA)
}
