package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Codec 基于 imaging 库的缩略图编解码实现：按固定宽度等比缩放，
// 输出降质 JPEG。
type Codec struct{}

// New 创建缩略图编解码器。
func New() Codec {
	return Codec{}
}

// Thumbnail 将原图缩放到指定宽度并编码为 JPEG。
// 原图宽度不足时不放大，只做降质转码。
func (Codec) Thumbnail(r io.Reader, width, quality int) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var resized image.Image = img
	if img.Bounds().Dx() > width {
		resized = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
