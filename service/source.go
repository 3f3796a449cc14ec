package service

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/TIANLI0/LiftKit/utils"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	// 注册 webp 解码器，imaging.Decode 经由 image.Decode 识别 WebP
	_ "github.com/chai2010/webp"
)

// Orientation EXIF 方向标签值 (1-8)
type Orientation int

const (
	OrientationUp Orientation = iota + 1
	OrientationUpMirrored
	OrientationDown
	OrientationDownMirrored
	OrientationLeftMirrored
	OrientationRight
	OrientationRightMirrored
	OrientationLeft
)

// LoadSource 读取并解码图片，按 EXIF 方向摆正后转换为 NRGBA
func LoadSource(uri string) (*image.NRGBA, error) {
	path, err := utils.ResolvePath(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	upright := Normalize(img, readOrientation(data))

	src, err := toNRGBA(upright)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceBuffer, err)
	}
	return src, nil
}

func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// readOrientation 读取 EXIF 方向，没有或无法解析时视为正向
func readOrientation(data []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationUp
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationUp
	}
	v, err := tag.Int(0)
	if err != nil || v < int(OrientationUp) || v > int(OrientationLeft) {
		return OrientationUp
	}
	return Orientation(v)
}

// Normalize 把图片重新渲染为正向。已经是正向的图片原样返回
func Normalize(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationUpMirrored:
		return imaging.FlipH(img)
	case OrientationDown:
		return imaging.Rotate180(img)
	case OrientationDownMirrored:
		return imaging.FlipV(img)
	case OrientationLeftMirrored:
		return imaging.Transpose(img)
	case OrientationRight:
		return imaging.Rotate270(img)
	case OrientationRightMirrored:
		return imaging.Transverse(img)
	case OrientationLeft:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// toNRGBA 转换为原点在 (0,0) 的 NRGBA，视觉后端和合成器都直接读 Pix
func toNRGBA(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("nil bitmap")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty bitmap %dx%d", b.Dx(), b.Dy())
	}
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba, nil
	}
	return imaging.Clone(img), nil
}
