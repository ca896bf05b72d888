package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/elastic-io/mediagate/internal/clients"
	"github.com/elastic-io/mediagate/internal/tempfile"
	"github.com/elastic-io/mediagate/internal/transcode"
	"github.com/elastic-io/mediagate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type partSpec struct {
	field       string
	filename    string
	contentType string
	data        string
}

func field(name, value string) partSpec {
	return partSpec{field: name, data: value}
}

func file(name, filename, contentType, data string) partSpec {
	return partSpec{field: name, filename: filename, contentType: contentType, data: data}
}

// newReader 用 multipart.Writer 构造请求体
func newReader(t *testing.T, parts ...partSpec) *multipart.Reader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename == "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, p.field))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.filename))
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return multipart.NewReader(&body, w.Boundary())
}

// stubTranscoder 把输入原样加上前缀，"corrupt" 视为无法解码
type stubTranscoder struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubTranscoder) Transcode(data []byte, contentType string) ([]byte, string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, contentType)
	s.mu.Unlock()
	if string(data) == "corrupt" {
		return nil, "", fmt.Errorf("%w: bad header", types.ErrUnsupportedImage)
	}
	return append([]byte("webp:"), data...), transcode.FormatWebP, nil
}

type putCall struct {
	ext         string
	contentType string
	category    string
	data        []byte
	key         string
}

// memStore 内存对象存储，failOn 指定第几次 put 返回传输错误（从1开始）
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	puts       []putCall
	failOn     int
	unconfig   bool
	tempParent string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Configured() bool { return !m.unconfig }

func (m *memStore) Put(ctx context.Context, body []byte, contentType, category string) (*types.UploadResult, error) {
	return m.put(body, "", contentType, category)
}

func (m *memStore) PutFile(ctx context.Context, path, contentType, category string) (*types.UploadResult, error) {
	if m.unconfig {
		return &types.UploadResult{Message: types.ErrStoreNotConfigured.Error()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.tempParent = filepath.Dir(path)
	m.mu.Unlock()
	return m.put(data, filepath.Ext(path), contentType, category)
}

func (m *memStore) put(data []byte, ext, contentType, category string) (*types.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unconfig {
		return &types.UploadResult{Message: types.ErrStoreNotConfigured.Error()}, nil
	}
	n := len(m.puts) + 1
	key := fmt.Sprintf("uploads/%s/%d", category, n)
	m.puts = append(m.puts, putCall{ext: ext, contentType: contentType, category: category, data: data, key: key})
	if n == m.failOn {
		return nil, fmt.Errorf("%w: connection reset", types.ErrStoreTransport)
	}
	m.objects[key] = data
	return &types.UploadResult{Success: true, Key: key, URL: "https://cdn.test/" + key, Message: "uploaded"}, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

var _ clients.ObjectStore = (*memStore)(nil)

// assertNoTransient 临时目录不存在或为空
func assertNoTransient(t *testing.T, dir string) {
	t.Helper()
	list, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, list, "transient files left behind")
}

type fixture struct {
	pipeline   *Pipeline
	store      *memStore
	transcoder *stubTranscoder
	tempDir    string
}

func newFixture(t *testing.T, cfg Config) *fixture {
	f := &fixture{
		store:      newMemStore(),
		transcoder: &stubTranscoder{},
		tempDir:    filepath.Join(t.TempDir(), "temp"),
	}
	f.pipeline = New(f.transcoder, f.store, tempfile.NewDir(f.tempDir), cfg, zaptest.NewLogger(t))
	return f
}

func TestIngest_OrderingAcrossInterleavedParts(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	mr := newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
		field("title", "Sofa"),
		file("images", "b.png", "image/png", "B"),
		file("doc", "manual.pdf", "application/pdf", "%PDF"),
		field("price", "42"),
		file("images", "c.webp", "image/webp", "C"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	require.NoError(t, err)

	require.Len(t, res.Images, 3)
	require.Len(t, res.URLs, 3)
	for i, img := range res.Images {
		assert.Equal(t, i, img.Order)
		assert.Equal(t, res.URLs[i], img.URL)
	}

	require.Len(t, f.store.puts, 3)
	assert.Equal(t, []byte("webp:A"), f.store.puts[0].data)
	assert.Equal(t, []byte("webp:B"), f.store.puts[1].data)
	assert.Equal(t, []byte("webp:C"), f.store.puts[2].data)
	for _, call := range f.store.puts {
		assert.Equal(t, CategoryListings, call.category)
		assert.Equal(t, "image/webp", call.contentType)
		assert.Equal(t, ".webp", call.ext)
	}

	assert.Equal(t, types.FieldMap{"title": "Sofa", "price": "42"}, res.Fields)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp"}, f.transcoder.calls)
	assert.Empty(t, res.Skipped)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_FieldParsing(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	mr := newReader(t,
		field("count", "42"),
		field("obj", `{"a":1}`),
		field("list", `[1,"two"]`),
		field("broken", "{broken"),
		field("plain", "hello {world}"),
		field("dup", "first"),
		field("dup", "second"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	require.NoError(t, err)

	assert.Equal(t, "42", res.Fields["count"])
	assert.Equal(t, map[string]any{"a": float64(1)}, res.Fields["obj"])
	assert.Equal(t, []any{float64(1), "two"}, res.Fields["list"])
	assert.Equal(t, "{broken", res.Fields["broken"])
	assert.Equal(t, "hello {world}", res.Fields["plain"])
	assert.Equal(t, "second", res.Fields["dup"])
	assert.Empty(t, res.Images)
	assert.Empty(t, res.URLs)
}

func TestIngest_NonImageFilesIgnored(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	mr := newReader(t,
		file("doc", "contract.pdf", "application/pdf", "%PDF-1.4"),
		file("anim", "a.gif", "image/gif", "GIF89a"),
		file("raw", "noext", "", "bytes"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	require.NoError(t, err)
	assert.Empty(t, res.Images)
	assert.Empty(t, res.URLs)
	assert.Empty(t, res.Fields)
	assert.Empty(t, f.store.puts)
	assert.Empty(t, f.transcoder.calls)
}

func TestIngest_ContentTypeParameters(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	res, err := f.pipeline.Ingest(context.Background(), newReader(t,
		file("images", "a.png", "IMAGE/PNG; name=a.png", "A"),
	))
	require.NoError(t, err)
	assert.Len(t, res.Images, 1)
	assert.Equal(t, []string{"image/png"}, f.transcoder.calls)
}

func TestIngest_TransportFailureLeavesEarlierObjects(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.store.failOn = 2

	mr := newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
		file("images", "b.jpg", "image/jpeg", "B"),
		file("images", "c.jpg", "image/jpeg", "C"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, types.ErrStoreTransport)

	// 第一张已上传的对象不会被回滚，第三张不会被处理
	assert.Len(t, f.store.objects, 1)
	assert.Contains(t, f.store.objects, "uploads/listings/1")
	assert.Len(t, f.store.puts, 2)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_TranscodeFailureAborts(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	mr := newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
		file("images", "b.jpg", "image/jpeg", "corrupt"),
		file("images", "c.jpg", "image/jpeg", "C"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, types.ErrUnsupportedImage)
	assert.Len(t, f.store.objects, 1)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_SkipPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = PolicySkip
	f := newFixture(t, cfg)

	mr := newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
		file("images", "b.jpg", "image/jpeg", "corrupt"),
		field("title", "Lamp"),
		file("images", "c.jpg", "image/jpeg", "C"),
	)

	res, err := f.pipeline.Ingest(context.Background(), mr)
	require.NoError(t, err)

	require.Len(t, res.Images, 2)
	assert.Equal(t, 0, res.Images[0].Order)
	assert.Equal(t, 2, res.Images[1].Order)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, res.Skipped[0].Order)
	assert.Equal(t, "b.jpg", res.Skipped[0].Filename)
	assert.Equal(t, "image/jpeg", res.Skipped[0].ContentType)
	assert.Contains(t, res.Skipped[0].Reason, "unsupported image")
	assert.Equal(t, "Lamp", res.Fields["title"])
	assertNoTransient(t, f.tempDir)
}

func TestIngest_SkipPolicyStillAbortsOnTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = PolicySkip
	f := newFixture(t, cfg)
	f.store.failOn = 1

	_, err := f.pipeline.Ingest(context.Background(), newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
	))
	assert.ErrorIs(t, err, types.ErrStoreTransport)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_StoreNotConfigured(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.store.unconfig = true

	_, err := f.pipeline.Ingest(context.Background(), newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
	))
	assert.ErrorIs(t, err, types.ErrStoreNotConfigured)
	assertNoTransient(t, f.tempDir)

	cfg := DefaultConfig()
	cfg.Policy = PolicySkip
	f = newFixture(t, cfg)
	f.store.unconfig = true

	res, err := f.pipeline.Ingest(context.Background(), newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
	))
	require.NoError(t, err)
	assert.Empty(t, res.Images)
	assert.Len(t, res.Skipped, 1)
}

func TestIngest_WriteFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	// 临时目录路径被普通文件占用，创建临时文件失败
	require.NoError(t, os.WriteFile(f.tempDir, []byte("blocker"), 0o644))

	_, err := f.pipeline.Ingest(context.Background(), newReader(t,
		file("images", "a.jpg", "image/jpeg", "A"),
	))
	assert.ErrorIs(t, err, types.ErrFilesystem)
	assert.Empty(t, f.store.puts)
}

func TestIngest_SizeLimits(t *testing.T) {
	cfg := Config{Limits: Limits{Min: 4, Max: 8, Enforce: true}, Policy: PolicyAbort}

	f := newFixture(t, cfg)
	_, err := f.pipeline.Ingest(context.Background(), newReader(t, file("images", "a.jpg", "image/jpeg", "abc")))
	assert.ErrorIs(t, err, types.ErrImageTooSmall)

	f = newFixture(t, cfg)
	_, err = f.pipeline.Ingest(context.Background(), newReader(t, file("images", "a.jpg", "image/jpeg", "abcdefghi")))
	assert.ErrorIs(t, err, types.ErrImageTooLarge)
	assert.Empty(t, f.transcoder.calls)

	f = newFixture(t, cfg)
	res, err := f.pipeline.Ingest(context.Background(), newReader(t, file("images", "a.jpg", "image/jpeg", "abcdefgh")))
	require.NoError(t, err)
	assert.Len(t, res.Images, 1)

	cfg.Limits.Enforce = false
	f = newFixture(t, cfg)
	res, err = f.pipeline.Ingest(context.Background(), newReader(t, file("images", "a.jpg", "image/jpeg", "x")))
	require.NoError(t, err)
	assert.Len(t, res.Images, 1)
}

func TestIngest_Cancelled(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Ingest(ctx, newReader(t, file("images", "a.jpg", "image/jpeg", "A")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.puts)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_MalformedStream(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	mr := multipart.NewReader(strings.NewReader("--xyz\r\ngarbage"), "xyz")

	_, err := f.pipeline.Ingest(context.Background(), mr)
	assert.Error(t, err)
}

func TestIngest_ConcurrentRequests(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.pipeline.Ingest(context.Background(), newReader(t,
				file("images", "a.jpg", "image/jpeg", fmt.Sprintf("A%d", i)),
				file("images", "b.jpg", "image/jpeg", fmt.Sprintf("B%d", i)),
			))
			if assert.NoError(t, err) {
				assert.Equal(t, 0, res.Images[0].Order)
				assert.Equal(t, 1, res.Images[1].Order)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.store.objects, 16)
	assertNoTransient(t, f.tempDir)
}

func TestIngest_RealTranscoder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, uint8(i%255)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	opaque := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i], opaque.Pix[i+3] = 10, 255
	}
	opaque.Set(0, 0, color.NRGBA{R: 1, A: 255})
	var opaqueBuf bytes.Buffer
	require.NoError(t, png.Encode(&opaqueBuf, opaque))

	store := newMemStore()
	tempDir := filepath.Join(t.TempDir(), "temp")
	p := New(transcode.NewTranscoder(transcode.DefaultOptions(), zaptest.NewLogger(t)), store,
		tempfile.NewDir(tempDir), DefaultConfig(), zaptest.NewLogger(t))

	res, err := p.Ingest(context.Background(), newReader(t,
		file("images", "alpha.png", "image/png", buf.String()),
		file("images", "opaque.png", "image/png", opaqueBuf.String()),
	))
	require.NoError(t, err)
	require.Len(t, res.Images, 2)

	assert.Equal(t, "image/png", store.puts[0].contentType)
	assert.Equal(t, ".png", store.puts[0].ext)
	assert.Equal(t, "image/webp", store.puts[1].contentType)
	assert.Equal(t, ".webp", store.puts[1].ext)
	assert.Equal(t, tempDir, store.tempParent)
	assertNoTransient(t, tempDir)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	p, err = ParsePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
