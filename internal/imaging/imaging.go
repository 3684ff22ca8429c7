// Package imaging 为视觉模型准备上传的图片：解码、等比缩放、重新编码
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	// 注册 gif / webp 解码器，png 和 jpeg 已由上面的包注册
	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxSide 是送给模型的图片的最长边
const MaxSide = 1024

// ErrUnsupported is returned when the data is not a decodable image.
var ErrUnsupported = errors.New("unsupported image format")

// Prepared 是缩放并重新编码后的图片
type Prepared struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// DataURL 返回 data:<mime>;base64,... 形式，可直接作为 image_url 发送
func (p Prepared) DataURL() string {
	return "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Prepare 解码 data，缩放到 maxSide×maxSide 以内（只缩小不放大）。
// JPEG 仍编码为 JPEG，其它格式编码为 PNG。
func Prepare(data []byte, maxSide int) (Prepared, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	b := src.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), maxSide)
	img := src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	mime := "image/png"
	if format == "jpeg" {
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return Prepared{}, fmt.Errorf("encode %s: %w", mime, err)
	}
	return Prepared{Data: buf.Bytes(), MimeType: mime, Width: w, Height: h}, nil
}

// Fit 计算 w×h 等比缩放到 maxSide 以内的尺寸，任一边至少为 1
func Fit(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}
