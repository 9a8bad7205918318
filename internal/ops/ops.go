// Package ops parses the operations token at the tail of a request path into
// a validated transform specification.
package ops

import (
	"strconv"
	"strings"
)

// PassthroughToken is the literal operations token that requests the original
// image with no transform beyond orientation normalization.
const PassthroughToken = "original"

// Format is one of the fixed output formats the service can produce.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
)

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}

// Lossy reports whether the format's encoder accepts a quality setting.
func (f Format) Lossy() bool {
	switch f {
	case FormatJPEG, FormatWebP, FormatAVIF:
		return true
	default:
		return false
	}
}

// ParseFormat maps a raw token value to a Format. Unrecognized values fall
// back to jpeg; existing deployments rely on this instead of a rejection.
func ParseFormat(raw string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJPEG, Format("jpg"):
		return FormatJPEG
	case FormatPNG:
		return FormatPNG
	case FormatGIF:
		return FormatGIF
	case FormatWebP:
		return FormatWebP
	case FormatAVIF:
		return FormatAVIF
	case FormatSVG:
		return FormatSVG
	default:
		return FormatJPEG
	}
}

// TransformSpec is the validated form of an operations token. The zero value
// is a pass-through: keep the source encoding, no resize.
type TransformSpec struct {
	Format  Format // empty = keep the source format and encoding
	Width   int    // 0 = unset
	Height  int    // 0 = unset
	Quality int    // 0 = encoder default; only reaches lossy encoders

	// Ignored collects raw segments that were dropped: unknown keys and
	// recognized keys whose values failed validation.
	Ignored []string
}

func (s TransformSpec) Resize() bool {
	return s.Width > 0 || s.Height > 0
}

// Parse turns a raw operations token into a TransformSpec. Segments are
// comma-separated key=value pairs; duplicate keys resolve to the last
// occurrence. Parsing never fails: malformed segments are recorded in
// Ignored and otherwise treated as absent.
func Parse(token string) TransformSpec {
	var spec TransformSpec
	if token == "" || token == PassthroughToken {
		return spec
	}

	for _, seg := range strings.Split(token, ",") {
		key, value, found := strings.Cut(seg, "=")
		if !found {
			spec.Ignored = append(spec.Ignored, seg)
			continue
		}

		switch key {
		case "format":
			spec.Format = ParseFormat(value)
		case "width":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				spec.Ignored = append(spec.Ignored, seg)
				continue
			}
			spec.Width = n
		case "height":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				spec.Ignored = append(spec.Ignored, seg)
				continue
			}
			spec.Height = n
		case "quality":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 100 {
				spec.Ignored = append(spec.Ignored, seg)
				continue
			}
			spec.Quality = n
		default:
			spec.Ignored = append(spec.Ignored, seg)
		}
	}

	return spec
}

// CacheKey is the storage key for a transformed variant. Identical keys
// always denote byte-identical output, which is what makes write-once /
// serve-many correct.
func CacheKey(originalPath, token string) string {
	return originalPath + "/" + token
}
