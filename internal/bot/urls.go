package bot

import "regexp"

// Both the canonical long form and the shortened share links are
// accepted; the lookup service resolves redirects itself.
var tiktokPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`),
	regexp.MustCompile(`https?://(?:vm|vt)\.tiktok\.com/\w+`),
	regexp.MustCompile(`https?://(?:www\.)?tiktok\.com/t/\w+`),
}

// containsTikTokURL reports whether the text carries a recognisable
// TikTok post link.
func containsTikTokURL(text string) bool {
	for _, pattern := range tiktokPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}

	return false
}

// extractTikTokURL returns the first TikTok post link found in the
// text, or the empty string.
func extractTikTokURL(text string) string {
	for _, pattern := range tiktokPatterns {
		if match := pattern.FindString(text); match != "" {
			return match
		}
	}

	return ""
}
