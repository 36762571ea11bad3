package artifacts

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ThumbnailMaxEdge bounds the longer side of a thumbnail in pixels.
const ThumbnailMaxEdge = 512

const thumbnailQuality = 85

// Thumbnail downscales an encoded image so its longer side fits
// ThumbnailMaxEdge and re-encodes it as JPEG. Images already within bounds
// are returned unchanged with their sniffed type.
func Thumbnail(data []byte) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("thumbnail: decode: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= ThumbnailMaxEdge && h <= ThumbnailMaxEdge {
		return data, "image/" + format, nil
	}
	tw, th := fitWithin(w, h, ThumbnailMaxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, "", fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func fitWithin(w, h, edge int) (int, int) {
	if w >= h {
		return edge, max(1, h*edge/w)
	}
	return max(1, w*edge/h), edge
}
