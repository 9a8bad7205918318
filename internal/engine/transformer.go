// Package engine applies orientation normalization, resize and re-encode to
// image bytes. Two implementations exist: a pure-Go engine used by default,
// and a libvips-backed engine selected with the "govips" build tag that adds
// webp and avif export.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imgedge/imgedge/internal/ops"
)

var (
	ErrUnsupportedSource  = errors.New("unsupported source image format")
	ErrEncoderUnavailable = errors.New("encoder not available in this build")
)

// Transformer turns original image bytes into a transformed variant. Given
// identical input and spec the output is byte-identical; the write-once /
// serve-many cache contract depends on that.
type Transformer interface {
	Transform(ctx context.Context, input []byte, srcContentType string, spec ops.TransformSpec) (data []byte, contentType string, err error)
}

// New returns the Transformer for the current build.
func New() (Transformer, error) {
	return newTransformer()
}

// isSVG sniffs vector sources, which bypass the raster pipeline entirely.
func isSVG(input []byte, contentType string) bool {
	if strings.HasPrefix(contentType, "image/svg") {
		return true
	}
	head := input
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func passthroughSVG(input []byte, spec ops.TransformSpec) ([]byte, string, error) {
	if spec.Resize() || (spec.Format != "" && spec.Format != ops.FormatSVG) {
		return nil, "", fmt.Errorf("%w: svg sources cannot be rasterized", ErrUnsupportedSource)
	}
	return input, ops.FormatSVG.ContentType(), nil
}

// formatFromDecodeName maps the name reported by image.Decode to the fixed
// format set. Sources outside the set cannot be re-encoded.
func formatFromDecodeName(name string) (ops.Format, error) {
	switch name {
	case "jpeg":
		return ops.FormatJPEG, nil
	case "png":
		return ops.FormatPNG, nil
	case "gif":
		return ops.FormatGIF, nil
	case "webp":
		return ops.FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, name)
	}
}
