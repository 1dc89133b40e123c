package lookup

// Kind describes the shape of a resolved post. It is decided once,
// when the lookup response is parsed, and drives all downstream
// dispatch in the acquisition pipeline.
type Kind string

const (
	KindVideo     Kind = "video"
	KindSlideshow Kind = "slideshow"
	KindAudio     Kind = "audio"
)

// maxTitleLength bounds the display title carried through to the
// messaging layer.
const maxTitleLength = 100

// Fallback display titles for posts whose payload omits one, so
// captions never render empty.
const (
	defaultVideoTitle     = "TikTok Video"
	defaultSlideshowTitle = "TikTok Slideshow"
	defaultAudioTitle     = "TikTok Audio"
)

// MediaInfo is the normalized record produced by a successful lookup.
// It is immutable once produced; none of its fields may be assumed
// populated when Resolve returned an error.
type MediaInfo struct {
	// ID is the stable content identifier, used to derive local file names.
	ID     string
	Title  string
	Author string

	// PlayURL is the standard-definition video variant; HDPlayURL the
	// high-definition one, when the service offers it.
	PlayURL   string
	HDPlayURL string

	// MusicURL points at the accompanying audio track, when present.
	// MusicTitle is the dedicated track title, which may differ from
	// the post's own title.
	MusicURL   string
	MusicTitle string

	// Images holds the still-image URLs of a slideshow post, in
	// presentation order. Non-empty implies KindSlideshow.
	Images []string
}

// Kind reports the content kind of the resolved post.
func (info *MediaInfo) Kind() Kind {
	if len(info.Images) > 0 {
		return KindSlideshow
	}

	return KindVideo
}

// BestPlayURL selects the highest-quality video variant available,
// preferring HD. Empty when the post carries no playable video.
func (info *MediaInfo) BestPlayURL() string {
	if info.HDPlayURL != "" {
		return info.HDPlayURL
	}

	return info.PlayURL
}

// TrackTitle returns the display title for the post's audio track,
// preferring the dedicated music title over the post title.
func (info *MediaInfo) TrackTitle() string {
	if info.MusicTitle != "" {
		return info.MusicTitle
	}
	if info.Title != "" {
		return info.Title
	}

	return defaultAudioTitle
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLength {
		return title
	}

	return string(runes[:maxTitleLength])
}
