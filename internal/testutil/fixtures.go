// Package testutil provides document fixtures for writer package tests:
// real decoded images and small reusable semantic.Document builders, kept
// out of the writer package itself so test-only dependencies (image
// codecs) never leak into the library's own import graph.
package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/wudi/linpdf/ir/semantic"
)

// tinyPNGBase64 is a 1x1 opaque black gray-with-alpha PNG. Decoding it through
// the standard image.Decode registry (backed here by image/png, resampled
// with golang.org/x/image/draw) exercises a real image codec path rather
// than a hand-rolled byte blob standing in for one.
const tinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

// NewImageXObject decodes the fixture PNG, resamples it to width x height
// with a nearest-neighbor filter, and returns a semantic.XObject carrying
// raw DeviceRGB pixel bytes — the shape the object builder treats as an
// opaque /Image stream body.
func NewImageXObject(width, height int) (*semantic.XObject, error) {
	raw, err := base64.StdEncoding.DecodeString(tinyPNGBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding fixture base64: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding fixture png: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	data := make([]byte, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			data = append(data, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}

	return &semantic.XObject{
		Subtype:     "Image",
		Width:       width,
		Height:      height,
		ColorSpace:  "DeviceRGB",
		BitsPerComp: 8,
		Data:        data,
	}, nil
}
