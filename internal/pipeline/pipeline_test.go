package pipeline_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikdrop/internal/lookup"
	"tikdrop/internal/pipeline"
	"tikdrop/internal/workspace"
)

type stubResolver struct {
	info *lookup.MediaInfo
	err  error
}

func (resolver *stubResolver) Resolve(_ context.Context, _ string) (*lookup.MediaInfo, error) {
	return resolver.info, resolver.err
}

type panickingResolver struct{}

func (panickingResolver) Resolve(_ context.Context, _ string) (*lookup.MediaInfo, error) {
	panic("resolver blew up")
}

// stubFetcher writes a marker file for every URL except those listed
// in failFor.
type stubFetcher struct {
	failFor map[string]bool
	fetched []string
}

func (fetcher *stubFetcher) Fetch(_ context.Context, remoteURL string, destPath string) error {
	if fetcher.failFor[remoteURL] {
		return errors.New("boom")
	}

	fetcher.fetched = append(fetcher.fetched, remoteURL)
	return os.WriteFile(destPath, []byte("data from "+remoteURL), 0o644)
}

type stubNormalizer struct {
	err    error
	called []string
}

func (normalizer *stubNormalizer) Normalize(path string) error {
	normalizer.called = append(normalizer.called, path)
	return normalizer.err
}

type pipelineHarness struct {
	pipeline   *pipeline.Pipeline
	workspace  *workspace.Workspace
	fetcher    *stubFetcher
	normalizer *stubNormalizer
}

func newHarness(t *testing.T, resolver *stubResolver) *pipelineHarness {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	fetcher := &stubFetcher{failFor: map[string]bool{}}
	normalizer := &stubNormalizer{}
	return &pipelineHarness{
		pipeline:   pipeline.New(resolver, fetcher, normalizer, ws),
		workspace:  ws,
		fetcher:    fetcher,
		normalizer: normalizer,
	}
}

func videoInfo() *lookup.MediaInfo {
	return &lookup.MediaInfo{
		ID:        "123",
		Title:     "T",
		Author:    "a",
		HDPlayURL: "http://x/hd.mp4",
		PlayURL:   "http://x/sd.mp4",
		MusicURL:  "http://x/a.mp3",
	}
}

func slideshowInfo() *lookup.MediaInfo {
	return &lookup.MediaInfo{
		ID:     "9",
		Title:  "S",
		Author: "a",
		Images: []string{"http://x/1.jpg", "http://x/2.jpg", "http://x/3.jpg"},
	}
}

func Test_AcquireVideo_Success(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: videoInfo()})

	result := harness.pipeline.AcquireVideo(context.Background(), "url")

	require.True(t, result.Success, result.Error)
	assert.Equal(t, lookup.KindVideo, result.Kind)
	assert.Equal(t, "T", result.Title)
	assert.Equal(t, "a", result.Author)

	expected := []string{harness.workspace.Path("123.mp4"), harness.workspace.Path("123_audio.mp3")}
	assert.Equal(t, expected, result.Files)
	for _, file := range result.Files {
		assert.FileExists(t, file)
	}

	assert.Contains(t, harness.fetcher.fetched, "http://x/hd.mp4", "HD URL should be fetched when available")
	assert.Equal(t, []string{harness.workspace.Path("123.mp4")}, harness.normalizer.called)
}

func Test_Acquire_ResolveFailureFailsEveryEntryPoint(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{err: errors.New("lookup down")})
	ctx := context.Background()

	for _, result := range []pipeline.Result{
		harness.pipeline.AcquireVideo(ctx, "url"),
		harness.pipeline.AcquireSlideshow(ctx, "url"),
		harness.pipeline.AcquireAudio(ctx, "url"),
	} {
		assert.False(t, result.Success)
		assert.Empty(t, result.Files)
		assert.NotEmpty(t, result.Error)
	}
}

func Test_AcquireVideo_NoPlayableURL(t *testing.T) {
	t.Parallel()
	info := videoInfo()
	info.PlayURL = ""
	info.HDPlayURL = ""
	harness := newHarness(t, &stubResolver{info: info})

	result := harness.pipeline.AcquireVideo(context.Background(), "url")

	assert.False(t, result.Success)
	assert.Empty(t, result.Files)
	assert.NotEmpty(t, result.Error)
}

func Test_AcquireVideo_FetchFailure(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: videoInfo()})
	harness.fetcher.failFor["http://x/hd.mp4"] = true

	result := harness.pipeline.AcquireVideo(context.Background(), "url")

	assert.False(t, result.Success)
	assert.Empty(t, result.Files)
}

func Test_AcquireVideo_AudioFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: videoInfo()})
	harness.fetcher.failFor["http://x/a.mp3"] = true

	result := harness.pipeline.AcquireVideo(context.Background(), "url")

	require.True(t, result.Success)
	assert.Equal(t, []string{harness.workspace.Path("123.mp4")}, result.Files)
}

func Test_AcquireVideo_NormalizeFailureKeepsDownload(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: videoInfo()})
	harness.normalizer.err = errors.New("encode failed")

	result := harness.pipeline.AcquireVideo(context.Background(), "url")

	require.True(t, result.Success)
	assert.FileExists(t, harness.workspace.Path("123.mp4"))
}

func Test_AcquireVideo_RedirectsToSlideshow(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: slideshowInfo()})

	viaVideo := harness.pipeline.AcquireVideo(context.Background(), "url")
	viaSlideshow := harness.pipeline.AcquireSlideshow(context.Background(), "url")

	require.True(t, viaVideo.Success)
	assert.Equal(t, lookup.KindSlideshow, viaVideo.Kind)
	assert.Equal(t, viaSlideshow.Kind, viaVideo.Kind)
	assert.Equal(t, viaSlideshow.Files, viaVideo.Files, "video intent on a slideshow post should behave exactly like a slideshow request")
}

func Test_AcquireSlideshow_NumbersImagesBySourcePosition(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: slideshowInfo()})

	result := harness.pipeline.AcquireSlideshow(context.Background(), "url")

	require.True(t, result.Success)
	expected := []string{
		harness.workspace.Path("9_1.jpg"),
		harness.workspace.Path("9_2.jpg"),
		harness.workspace.Path("9_3.jpg"),
	}
	assert.Equal(t, expected, result.Files)
}

func Test_AcquireSlideshow_SkippedImageLeavesGap(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: slideshowInfo()})
	harness.fetcher.failFor["http://x/2.jpg"] = true

	result := harness.pipeline.AcquireSlideshow(context.Background(), "url")

	require.True(t, result.Success, "one failed image must not fail the slideshow")
	expected := []string{
		harness.workspace.Path("9_1.jpg"),
		harness.workspace.Path("9_3.jpg"),
	}
	assert.Equal(t, expected, result.Files, "numbering follows source position, skipped images leave gaps")
}

func Test_AcquireSlideshow_AllImagesFailed(t *testing.T) {
	t.Parallel()
	info := slideshowInfo()
	info.MusicURL = "http://x/a.mp3"
	harness := newHarness(t, &stubResolver{info: info})
	for _, imageURL := range info.Images {
		harness.fetcher.failFor[imageURL] = true
	}

	result := harness.pipeline.AcquireSlideshow(context.Background(), "url")

	assert.False(t, result.Success, "audio alone cannot make a slideshow successful")
	assert.Empty(t, result.Files)
}

func Test_AcquireSlideshow_IncludesAudioTrack(t *testing.T) {
	t.Parallel()
	info := slideshowInfo()
	info.MusicURL = "http://x/a.mp3"
	harness := newHarness(t, &stubResolver{info: info})

	result := harness.pipeline.AcquireSlideshow(context.Background(), "url")

	require.True(t, result.Success)
	assert.Equal(t, harness.workspace.Path("9_audio.mp3"), result.Files[len(result.Files)-1])
}

func Test_AcquireAudio_Success(t *testing.T) {
	t.Parallel()
	info := videoInfo()
	info.MusicTitle = "Track"
	harness := newHarness(t, &stubResolver{info: info})

	result := harness.pipeline.AcquireAudio(context.Background(), "url")

	require.True(t, result.Success)
	assert.Equal(t, lookup.KindAudio, result.Kind)
	assert.Equal(t, []string{harness.workspace.Path("123_audio.mp3")}, result.Files)
	assert.Equal(t, "Track", result.Title, "the dedicated music title should win over the post title")
}

func Test_AcquireAudio_NoTrackIsDistinctFailure(t *testing.T) {
	t.Parallel()
	info := videoInfo()
	info.MusicURL = ""
	noTrack := newHarness(t, &stubResolver{info: info})
	resolveFailed := newHarness(t, &stubResolver{err: errors.New("lookup down")})

	noTrackResult := noTrack.pipeline.AcquireAudio(context.Background(), "url")
	resolveFailedResult := resolveFailed.pipeline.AcquireAudio(context.Background(), "url")

	assert.False(t, noTrackResult.Success)
	assert.False(t, resolveFailedResult.Success)
	assert.NotEmpty(t, noTrackResult.Error)
	assert.NotEqual(t, resolveFailedResult.Error, noTrackResult.Error, "a missing track should not read like a resolver failure")
}

func Test_AcquireAudio_FetchFailure(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{info: videoInfo()})
	harness.fetcher.failFor["http://x/a.mp3"] = true

	result := harness.pipeline.AcquireAudio(context.Background(), "url")

	assert.False(t, result.Success)
	assert.Empty(t, result.Files)
}

func Test_Acquire_ClearsWorkspaceOnEntry(t *testing.T) {
	t.Parallel()
	harness := newHarness(t, &stubResolver{err: errors.New("lookup down")})
	stale := harness.workspace.Path("stale.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	harness.pipeline.AcquireVideo(context.Background(), "url")

	assert.NoFileExists(t, stale, "files of the previous acquisition must be gone")
}

func Test_Acquire_PanicsAreAbsorbed(t *testing.T) {
	t.Parallel()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	p := pipeline.New(panickingResolver{}, &stubFetcher{}, &stubNormalizer{}, ws)

	assert.NotPanics(t, func() {
		result := p.AcquireVideo(context.Background(), "url")
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})
}
