//go:build !govips || !cgo

package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/imgedge/imgedge/internal/ops"
)

func TestTransformDeterminism(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 120, 80)
	spec := ops.Parse("format=jpeg,width=60,quality=70")

	first, ct1, err := tr.Transform(context.Background(), src, "image/png", spec)
	if err != nil {
		t.Fatalf("first transform: %v", err)
	}
	second, ct2, err := tr.Transform(context.Background(), src, "image/png", spec)
	if err != nil {
		t.Fatalf("second transform: %v", err)
	}

	if ct1 != ct2 {
		t.Fatalf("content types differ: %s vs %s", ct1, ct2)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("expected byte-identical output for identical input and spec")
	}
}

func TestTransformAspectRatioWidthOnly(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 400, 300)

	out, ct, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("width=200"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	verifyDimensions(t, out, 200, 150)
}

func TestTransformAspectRatioHeightOnly(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 400, 300)

	out, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("height=150"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	verifyDimensions(t, out, 200, 150)
}

func TestTransformExactBoxWithBothDimensions(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 400, 300)

	out, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("width=100,height=100"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	verifyDimensions(t, out, 100, 100)
}

func TestTransformQualityIgnoredForPNG(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 64, 64)

	withQuality, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("format=png,quality=50"))
	if err != nil {
		t.Fatalf("transform with quality: %v", err)
	}
	withoutQuality, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("format=png"))
	if err != nil {
		t.Fatalf("transform without quality: %v", err)
	}

	if !bytes.Equal(withQuality, withoutQuality) {
		t.Fatal("expected quality to be discarded for lossless output")
	}
}

func TestTransformQualityAppliedForJPEG(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 200, 200)

	low, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("format=jpeg,quality=10"))
	if err != nil {
		t.Fatalf("transform at low quality: %v", err)
	}
	high, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("format=jpeg,quality=90"))
	if err != nil {
		t.Fatalf("transform at high quality: %v", err)
	}

	if bytes.Equal(low, high) {
		t.Fatal("expected quality to change lossy output")
	}
}

func TestTransformEmptySpecKeepsSourceEncoding(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 40, 30)

	out, ct, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("original"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	verifyDimensions(t, out, 40, 30)
}

func TestTransformWebPExportUnavailable(t *testing.T) {
	tr := imagingTransformer{}
	src := buildTestPNG(t, 40, 30)

	_, _, err := tr.Transform(context.Background(), src, "image/png", ops.Parse("format=webp"))
	if !errors.Is(err, ErrEncoderUnavailable) {
		t.Fatalf("expected ErrEncoderUnavailable, got %v", err)
	}
}

func TestTransformSVGPassthrough(t *testing.T) {
	tr := imagingTransformer{}
	src := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`)

	out, ct, err := tr.Transform(context.Background(), src, "image/svg+xml", ops.TransformSpec{})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if ct != "image/svg+xml" {
		t.Fatalf("expected image/svg+xml, got %s", ct)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("expected svg bytes to pass through unchanged")
	}

	if _, _, err := tr.Transform(context.Background(), src, "image/svg+xml", ops.Parse("width=100")); err == nil {
		t.Fatal("expected error when resizing an svg source")
	}
}

func TestTransformCorruptInput(t *testing.T) {
	tr := imagingTransformer{}

	_, _, err := tr.Transform(context.Background(), []byte("not an image"), "image/jpeg", ops.TransformSpec{})
	if err == nil {
		t.Fatal("expected decode error for corrupt input")
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 90,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyDimensions(t *testing.T, data []byte, wantW, wantH int) {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := img.Bounds().Dx(); got != wantW {
		t.Fatalf("expected width %d, got %d", wantW, got)
	}
	if got := img.Bounds().Dy(); got != wantH {
		t.Fatalf("expected height %d, got %d", wantH, got)
	}
}
