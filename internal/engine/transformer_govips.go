//go:build govips && cgo

package engine

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/imgedge/imgedge/internal/ops"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, srcContentType string, spec ops.TransformSpec) ([]byte, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}

	// SVG stays on the byte pass-through path in both builds so a cache key
	// denotes the same bytes regardless of which engine produced them.
	if isSVG(input, srcContentType) {
		return passthroughSVG(input, spec)
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, "", fmt.Errorf("normalize orientation: %w", err)
	}

	if err := applyResize(img, spec); err != nil {
		return nil, "", err
	}

	format := spec.Format
	if format == "" {
		format, err = formatFromImageType(vips.DetermineImageType(input))
		if err != nil {
			return nil, "", err
		}
	}

	data, err := exportImage(img, format, spec.Quality)
	if err != nil {
		return nil, "", err
	}

	return data, format.ContentType(), nil
}

func applyResize(img *vips.ImageRef, spec ops.TransformSpec) error {
	if !spec.Resize() {
		return nil
	}
	if img.Width() <= 0 || img.Height() <= 0 {
		return fmt.Errorf("source image has invalid dimensions")
	}

	switch {
	case spec.Width > 0 && spec.Height > 0:
		hscale := float64(spec.Width) / float64(img.Width())
		vscale := float64(spec.Height) / float64(img.Height())
		if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
			return fmt.Errorf("resize image: %w", err)
		}
	case spec.Width > 0:
		if err := img.Resize(float64(spec.Width)/float64(img.Width()), vips.KernelLanczos3); err != nil {
			return fmt.Errorf("resize image: %w", err)
		}
	default:
		if err := img.Resize(float64(spec.Height)/float64(img.Height()), vips.KernelLanczos3); err != nil {
			return fmt.Errorf("resize image: %w", err)
		}
	}
	return nil
}

func formatFromImageType(imageType vips.ImageType) (ops.Format, error) {
	switch imageType {
	case vips.ImageTypeJPEG:
		return ops.FormatJPEG, nil
	case vips.ImageTypePNG:
		return ops.FormatPNG, nil
	case vips.ImageTypeGIF:
		return ops.FormatGIF, nil
	case vips.ImageTypeWEBP:
		return ops.FormatWebP, nil
	case vips.ImageTypeAVIF:
		return ops.FormatAVIF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, vips.ImageTypes[imageType])
	}
}

func exportImage(img *vips.ImageRef, format ops.Format, quality int) ([]byte, error) {
	switch format {
	case ops.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.StripMetadata = true
		if quality > 0 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case ops.FormatPNG:
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case ops.FormatGIF:
		params := vips.NewGifExportParams()
		params.StripMetadata = true
		data, _, err := img.ExportGIF(params)
		if err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
		return data, nil
	case ops.FormatWebP:
		params := vips.NewWebpExportParams()
		params.StripMetadata = true
		if quality > 0 {
			params.Quality = quality
		}
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	case ops.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.StripMetadata = true
		if quality > 0 {
			params.Quality = quality
		}
		data, _, err := img.ExportAvif(params)
		if err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrEncoderUnavailable, format)
	}
}
