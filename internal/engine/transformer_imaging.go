//go:build !govips || !cgo

package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/imgedge/imgedge/internal/ops"
	_ "golang.org/x/image/webp"
)

type imagingTransformer struct{}

func (t imagingTransformer) Transform(ctx context.Context, input []byte, srcContentType string, spec ops.TransformSpec) ([]byte, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	if isSVG(input, srcContentType) {
		return passthroughSVG(input, spec)
	}

	_, srcName, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}

	// AutoOrientation bakes EXIF orientation into the pixel data; re-encoding
	// below drops the remaining metadata.
	img, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}

	if spec.Resize() {
		// With a single dimension imaging scales the other to preserve the
		// aspect ratio; with both the target box is exact.
		img = imaging.Resize(img, spec.Width, spec.Height, imaging.Lanczos)
	}

	format := spec.Format
	if format == "" {
		format, err = formatFromDecodeName(srcName)
		if err != nil {
			return nil, "", err
		}
	}

	data, err := encodeImage(img, format, spec.Quality)
	if err != nil {
		return nil, "", err
	}

	return data, format.ContentType(), nil
}

func encodeImage(img image.Image, format ops.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ops.FormatJPEG:
		var opts []imaging.EncodeOption
		if quality > 0 {
			opts = append(opts, imaging.JPEGQuality(quality))
		}
		if err := imaging.Encode(&buf, img, imaging.JPEG, opts...); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case ops.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case ops.FormatGIF:
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	case ops.FormatWebP, ops.FormatAVIF:
		return nil, fmt.Errorf("%w: %s export requires the govips build", ErrEncoderUnavailable, format)
	default:
		return nil, fmt.Errorf("%w: %s", ErrEncoderUnavailable, format)
	}

	return buf.Bytes(), nil
}
