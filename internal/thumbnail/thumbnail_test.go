package thumbnail

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOptimizer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (o *countingOptimizer) IsURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

func (o *countingOptimizer) CreateThumbnail(data string, size int) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.fail {
		return "", errors.New("boom")
	}
	return fmt.Sprintf("thumb(%d):%s", size, data[:8]), nil
}

func (o *countingOptimizer) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type recordingObserver struct {
	hits, misses, cleared int
}

func (r *recordingObserver) ThumbnailHit()          { r.hits++ }
func (r *recordingObserver) ThumbnailMiss()         { r.misses++ }
func (r *recordingObserver) ThumbnailCleared(n int) { r.cleared += n }

func pngPayload(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCacheHitSkipsOptimizer(t *testing.T) {
	opt := &countingOptimizer{}
	obs := &recordingObserver{}
	c := NewCache(opt, 10, 200)
	c.SetObserver(obs)

	payload := strings.Repeat("A", 150)
	first := c.Thumbnail(payload)
	second := c.Thumbnail(payload)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, opt.Calls())
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCacheKeysOnFirstHundredCharacters(t *testing.T) {
	opt := &countingOptimizer{}
	c := NewCache(opt, 10, 200)

	common := strings.Repeat("B", 100)
	c.Thumbnail(common + "tail-one")
	c.Thumbnail(common + "tail-two")

	assert.Equal(t, 1, opt.Calls(), "payloads sharing a 100 character prefix share an entry")
	assert.Equal(t, 1, c.Len())
}

func TestCachePassesURLsThrough(t *testing.T) {
	opt := &countingOptimizer{}
	c := NewCache(opt, 10, 200)

	url := "https://cdn.example.com/listing/1.jpg"
	assert.Equal(t, url, c.Thumbnail(url))
	assert.Equal(t, "", c.Thumbnail(""))
	assert.Equal(t, 0, opt.Calls())
	assert.Equal(t, 0, c.Len())
}

func TestCacheClearsWhenFull(t *testing.T) {
	opt := &countingOptimizer{}
	obs := &recordingObserver{}
	c := NewCache(opt, 3, 200)
	c.SetObserver(obs)

	for i := 0; i < 3; i++ {
		c.Thumbnail(fmt.Sprintf("payload-%02d-%s", i, strings.Repeat("x", 20)))
	}
	assert.Equal(t, 3, c.Len())

	c.Thumbnail("payload-99-" + strings.Repeat("x", 20))
	assert.Equal(t, 1, c.Len(), "a full cache is reset before inserting")
	assert.Equal(t, 3, obs.cleared)
	assert.Equal(t, uint64(1), c.Stats().Clears)

	for i := 0; i < 20; i++ {
		c.Thumbnail(fmt.Sprintf("again-%02d-%s", i, strings.Repeat("y", 20)))
		assert.LessOrEqual(t, c.Len(), 3)
	}
}

func TestCacheFailureReturnsOriginal(t *testing.T) {
	opt := &countingOptimizer{fail: true}
	c := NewCache(opt, 10, 200)

	payload := "not-really-an-image-" + strings.Repeat("z", 30)
	assert.Equal(t, payload, c.Thumbnail(payload))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Failures)

	// Failures are not cached, so the optimizer is retried
	c.Thumbnail(payload)
	assert.Equal(t, 2, opt.Calls())
}

func TestCacheConcurrentUse(t *testing.T) {
	opt := &countingOptimizer{}
	c := NewCache(opt, 5, 200)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Thumbnail(fmt.Sprintf("img-%02d-%s", i%8, strings.Repeat("q", 20)))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 5)
}

func TestImagingOptimizerShrinksImages(t *testing.T) {
	opt := NewImagingOptimizer()
	payload := pngPayload(t, 400, 300)

	thumb, err := opt.CreateThumbnail(payload, 200)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(thumb, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(thumb, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestImagingOptimizerAcceptsBareBase64(t *testing.T) {
	opt := NewImagingOptimizer()
	bare := strings.TrimPrefix(pngPayload(t, 50, 40), "data:image/png;base64,")

	thumb, err := opt.CreateThumbnail(bare, 200)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(thumb, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width, "small images are not upscaled")
}

func TestImagingOptimizerRejectsGarbage(t *testing.T) {
	opt := NewImagingOptimizer()

	_, err := opt.CreateThumbnail("data:image/png;base64,", 200)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = opt.CreateThumbnail("%%%not base64%%%", 200)
	assert.Error(t, err)

	_, err = opt.CreateThumbnail(base64.StdEncoding.EncodeToString([]byte("plain text")), 200)
	assert.Error(t, err)

	assert.True(t, opt.IsURL("HTTPS://cdn.example.com/a.png"))
	assert.False(t, opt.IsURL("data:image/png;base64,AAAA"))
}

func TestCacheWithImagingOptimizerFallsBack(t *testing.T) {
	c := NewCache(NewImagingOptimizer(), 0, 0)
	bad := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("nope", 40)))
	assert.Equal(t, bad, c.Thumbnail(bad))
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)
}

// pngHeaderOnly is a grayscale PNG that declares w×h but carries no pixel data
func pngHeaderOnly(w, h uint32) string {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestImagingOptimizerRejectsOversizedImages(t *testing.T) {
	opt := NewImagingOptimizer()

	_, err := opt.CreateThumbnail(pngHeaderOnly(12000, 12000), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Contains(t, err.Error(), "12000x12000")

	_, err = opt.CreateThumbnail(pngHeaderOnly(4097, 4096), 100)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestImagingOptimizerCustomPixelBudget(t *testing.T) {
	opt := &ImagingOptimizer{Quality: 70, MaxPixels: 32 * 32}

	_, err := opt.CreateThumbnail(pngPayload(t, 64, 64), 16)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	out, err := opt.CreateThumbnail(pngPayload(t, 32, 32), 16)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "data:image/jpeg;base64,"))
}

func TestCacheKeepsOriginalForOversizedImages(t *testing.T) {
	c := NewCache(NewImagingOptimizer(), 10, 100)
	payload := pngHeaderOnly(12000, 12000)

	assert.Equal(t, payload, c.Thumbnail(payload))
}
