// Package pipeline orchestrates the acquisition of a single post:
// metadata resolution, content-kind dispatch, file retrieval into the
// workspace, and best-effort video normalisation.
//
// The pipeline is synchronous and sequential, and the shared
// workspace means only one acquisition may be in flight at a time;
// serialising invocations is the caller's responsibility.
package pipeline

import (
	"context"
	"fmt"

	"tikdrop/internal/lookup"
	"tikdrop/internal/workspace"
	"tikdrop/pkg/logger"
)

var log = logger.Get("Pipeline")

// User-facing failure messages. Each failure class gets its own
// explanation so the requester can tell an invalid or private link
// apart from a plain download error.
const (
	msgVideoResolveFailed     = "No se pudo obtener información del video. Verifica que el link sea válido y público."
	msgSlideshowResolveFailed = "No se pudo obtener información del slideshow. Verifica que el link sea válido y público."
	msgAudioResolveFailed     = "No se pudo obtener información del audio. Verifica que el link sea válido y público."
	msgNoVideoURL             = "No se encontró URL de descarga del video"
	msgVideoFetchFailed       = "Error al descargar el video"
	msgNoImagesFetched        = "No se pudieron descargar las imágenes"
	msgNoAudioTrack           = "No se encontró audio en este video"
	msgAudioFetchFailed       = "Error al descargar el audio"
)

type (
	resolver interface {
		Resolve(ctx context.Context, sourceURL string) (*lookup.MediaInfo, error)
	}

	fetcher interface {
		Fetch(ctx context.Context, remoteURL string, destPath string) error
	}

	normalizer interface {
		Normalize(path string) error
	}

	Pipeline struct {
		resolver   resolver
		fetcher    fetcher
		normalizer normalizer
		workspace  *workspace.Workspace
	}
)

func New(resolver resolver, fetcher fetcher, normalizer normalizer, ws *workspace.Workspace) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		fetcher:    fetcher,
		normalizer: normalizer,
		workspace:  ws,
	}
}

// AcquireVideo downloads a video post at the best quality available.
// When the resolved post turns out to be a slideshow, the request
// degrades gracefully to slideshow handling instead of failing. The
// companion audio track is fetched when the post names one, but its
// absence or failure never fails an otherwise successful request.
func (pipeline *Pipeline) AcquireVideo(ctx context.Context, sourceURL string) (result Result) {
	defer pipeline.absorbPanic(lookup.KindVideo, &result)
	pipeline.clearWorkspace()

	info, err := pipeline.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		log.Emit(logger.WARNING, "Resolve failed for %s: %s\n", sourceURL, err.Error())
		return failure(lookup.KindVideo, msgVideoResolveFailed)
	}

	if info.Kind() == lookup.KindSlideshow {
		log.Emit(logger.INFO, "Post %s is a slideshow, redirecting\n", info.ID)
		return pipeline.acquireSlideshowFromInfo(ctx, info)
	}

	videoURL := info.BestPlayURL()
	if videoURL == "" {
		return failure(lookup.KindVideo, msgNoVideoURL)
	}

	videoPath := pipeline.workspace.Path(info.ID + ".mp4")
	if err := pipeline.fetcher.Fetch(ctx, videoURL, videoPath); err != nil {
		log.Emit(logger.WARNING, "Video fetch failed for %s: %s\n", info.ID, err.Error())
		return failure(lookup.KindVideo, msgVideoFetchFailed)
	}

	// Normalisation is an enhancement, not a requirement: a failed
	// encode keeps the file exactly as downloaded.
	if err := pipeline.normalizer.Normalize(videoPath); err != nil {
		log.Emit(logger.WARNING, "Normalisation failed for %s, keeping original file: %s\n", info.ID, err.Error())
	}

	files := []string{videoPath}
	if info.MusicURL != "" {
		audioPath := pipeline.workspace.Path(info.ID + "_audio.mp3")
		if err := pipeline.fetcher.Fetch(ctx, info.MusicURL, audioPath); err == nil {
			files = append(files, audioPath)
		} else {
			log.Emit(logger.WARNING, "Audio track fetch failed for %s, omitting: %s\n", info.ID, err.Error())
		}
	}

	return Result{
		Success: true,
		Kind:    lookup.KindVideo,
		Files:   files,
		Title:   info.Title,
		Author:  info.Author,
	}
}

// AcquireSlideshow downloads every still image of a slideshow post
// plus the accompanying audio track, when present.
func (pipeline *Pipeline) AcquireSlideshow(ctx context.Context, sourceURL string) (result Result) {
	defer pipeline.absorbPanic(lookup.KindSlideshow, &result)
	pipeline.clearWorkspace()

	info, err := pipeline.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		log.Emit(logger.WARNING, "Resolve failed for %s: %s\n", sourceURL, err.Error())
		return failure(lookup.KindSlideshow, msgSlideshowResolveFailed)
	}

	return pipeline.acquireSlideshowFromInfo(ctx, info)
}

// acquireSlideshowFromInfo is the shared slideshow path, reached
// either directly or via a video-intent request that resolved to a
// slideshow post. Image files are numbered by their position in the
// resolved list, so a skipped image leaves a gap rather than
// renumbering those that follow. Individual image failures are
// skipped silently; only retrieving zero images fails the request.
func (pipeline *Pipeline) acquireSlideshowFromInfo(ctx context.Context, info *lookup.MediaInfo) Result {
	files := make([]string, 0, len(info.Images)+1)
	for i, imageURL := range info.Images {
		imagePath := pipeline.workspace.Path(fmt.Sprintf("%s_%d.jpg", info.ID, i+1))
		if err := pipeline.fetcher.Fetch(ctx, imageURL, imagePath); err != nil {
			log.Emit(logger.WARNING, "Image %d fetch failed for %s, skipping: %s\n", i+1, info.ID, err.Error())
			continue
		}

		files = append(files, imagePath)
	}

	if len(files) == 0 {
		return failure(lookup.KindSlideshow, msgNoImagesFetched)
	}

	if info.MusicURL != "" {
		audioPath := pipeline.workspace.Path(info.ID + "_audio.mp3")
		if err := pipeline.fetcher.Fetch(ctx, info.MusicURL, audioPath); err == nil {
			files = append(files, audioPath)
		} else {
			log.Emit(logger.WARNING, "Audio track fetch failed for %s, omitting: %s\n", info.ID, err.Error())
		}
	}

	return Result{
		Success: true,
		Kind:    lookup.KindSlideshow,
		Files:   files,
		Title:   info.Title,
		Author:  info.Author,
	}
}

// AcquireAudio downloads only the post's audio track. Unlike the
// video path, the absence of a track is a failure here, reported
// distinctly from a resolver failure. The result's title prefers the
// dedicated music title over the post's own.
func (pipeline *Pipeline) AcquireAudio(ctx context.Context, sourceURL string) (result Result) {
	defer pipeline.absorbPanic(lookup.KindAudio, &result)
	pipeline.clearWorkspace()

	info, err := pipeline.resolver.Resolve(ctx, sourceURL)
	if err != nil {
		log.Emit(logger.WARNING, "Resolve failed for %s: %s\n", sourceURL, err.Error())
		return failure(lookup.KindAudio, msgAudioResolveFailed)
	}

	if info.MusicURL == "" {
		return failure(lookup.KindAudio, msgNoAudioTrack)
	}

	audioPath := pipeline.workspace.Path(info.ID + "_audio.mp3")
	if err := pipeline.fetcher.Fetch(ctx, info.MusicURL, audioPath); err != nil {
		log.Emit(logger.WARNING, "Audio fetch failed for %s: %s\n", info.ID, err.Error())
		return failure(lookup.KindAudio, msgAudioFetchFailed)
	}

	return Result{
		Success: true,
		Kind:    lookup.KindAudio,
		Files:   []string{audioPath},
		Title:   info.TrackTitle(),
		Author:  info.Author,
	}
}

// absorbPanic converts any panic escaping an entry point into a
// failed result; exceptions must never cross into the caller.
func (pipeline *Pipeline) absorbPanic(kind lookup.Kind, result *Result) {
	if r := recover(); r != nil {
		log.Emit(logger.ERROR, "Acquisition panicked: %v\n", r)
		*result = failure(kind, fmt.Sprint(r))
	}
}

func (pipeline *Pipeline) clearWorkspace() {
	if err := pipeline.workspace.Clear(); err != nil {
		log.Emit(logger.WARNING, "Workspace clear failed: %s\n", err.Error())
	}
}
