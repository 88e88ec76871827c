package playback

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"file":  true,
	"blob":  true,
}

// ValidateURL rejects empty, whitespace-bearing, unparseable, or unsupported
// scheme URLs. Relative paths such as "A.mp4" or "/uploads/x" are accepted.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidSource)
	}
	if strings.ContainsFunc(raw, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) {
		return fmt.Errorf("%w: url %q contains whitespace", ErrInvalidSource, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "":
		if u.Path == "" {
			return fmt.Errorf("%w: url %q has no path", ErrInvalidSource, raw)
		}
	case !allowedSchemes[scheme]:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	case (scheme == "http" || scheme == "https") && u.Host == "":
		return fmt.Errorf("%w: url %q has no host", ErrInvalidSource, raw)
	}
	return nil
}

// ValidateSource checks both renditions. The low-quality URL is optional but
// must differ from the high-quality one when present.
func ValidateSource(src MediaSource) error {
	if err := ValidateURL(src.HighQualityURL); err != nil {
		return fmt.Errorf("high quality: %w", err)
	}
	if !src.HasLowQuality() {
		return nil
	}
	if err := ValidateURL(src.LowQualityURL); err != nil {
		return fmt.Errorf("low quality: %w", err)
	}
	if src.LowQualityURL == src.HighQualityURL {
		return fmt.Errorf("%w: low quality url equals high quality url", ErrInvalidSource)
	}
	return nil
}
