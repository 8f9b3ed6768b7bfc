package gallerypress

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// Cleaned base64 shorter than this is treated as "no image supplied".
	minPayloadLen = 100
	// Renders wider than this are downscaled before upload.
	maxRenderWidth = 1600
)

var reDataURI = regexp.MustCompile(`^data:[^;,]+;base64,`)

// CleanPayload strips an optional data-URI prefix and incidental whitespace
// from a base64 image payload.
func CleanPayload(raw string) string {
	s := strings.TrimSpace(raw)
	s = reDataURI.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

// DecodePayload returns the binary image bytes for a base64 payload, or nil
// when the payload is absent or too short to plausibly be an image.
func DecodePayload(raw string) ([]byte, error) {
	cleaned := CleanPayload(raw)
	if len(cleaned) < minPayloadLen {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err == nil {
		return data, nil
	}
	// Tolerate payloads sent without padding.
	if data, rawErr := base64.RawStdEncoding.DecodeString(cleaned); rawErr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("decode image payload: %w", err)
}

// NormalizeImage downscales an image to maxRenderWidth and re-encodes it as
// PNG. Decodable input always comes back as PNG so the upload filename and
// MIME type stay truthful; bytes that do not decode pass through untouched.
func NormalizeImage(data []byte) []byte {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxRenderWidth {
		newH := h * maxRenderWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxRenderWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	} else if format == "png" {
		return data
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return data
	}
	return buf.Bytes()
}

// AssetFilename derives a platform-safe filename from the submission
// timestamp, display name, and template slot ("clean" or "logo").
func AssetFilename(timestamp, nickname, slot string) string {
	base := Slugify(timestamp + " " + nickname)
	if base == "" {
		base = "submission"
	}
	return base + "-" + slot + ".png"
}

// Slugify reduces a string to lowercase letters, digits, and single hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
