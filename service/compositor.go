package service

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/TIANLI0/LiftKit/utils"
	"github.com/disintegration/imaging"
	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Compositor 用前景掩码把原图合成到透明背景上并写入临时文件
type Compositor struct {
	dir    string
	prefix string
}

func NewCompositor(dir, prefix string) *Compositor {
	if dir == "" {
		dir = os.TempDir()
	}
	if prefix == "" {
		prefix = "cutout-"
	}
	return &Compositor{
		dir:    dir,
		prefix: prefix,
	}
}

// Composite 缩放掩码、混合、编码为 PNG 并写入新的临时文件，返回文件路径
func (c *Compositor) Composite(src *image.NRGBA, mask *image.Gray) (string, error) {
	if src == nil || mask == nil {
		return "", fmt.Errorf("%w: missing source or mask", ErrMaskBlendFailed)
	}

	scaled := ScaleMask(mask, src.Bounds())

	out, err := Blend(src, scaled)
	if err != nil {
		return "", err
	}

	data, err := Encode(out)
	if err != nil {
		return "", err
	}

	return c.WriteTemp(data)
}

// ScaleMask 把掩码按 X/Y 独立比例缩放到 bounds 的尺寸，尺寸一致时原样返回
func ScaleMask(mask *image.Gray, bounds image.Rectangle) *image.Gray {
	mb := mask.Bounds()
	if mb.Dx() == bounds.Dx() && mb.Dy() == bounds.Dy() {
		return mask
	}

	scaled := image.NewGray(bounds)
	draw.BiLinear.Scale(scaled, bounds, mask, mb, draw.Src, nil)
	return scaled
}

// Blend 掩码值在原图和透明背景之间做线性插值
func Blend(src *image.NRGBA, mask *image.Gray) (*image.NRGBA, error) {
	if src == nil || mask == nil {
		return nil, fmt.Errorf("%w: missing source or mask", ErrMaskBlendFailed)
	}
	sb, mb := src.Bounds(), mask.Bounds()
	if sb.Empty() || sb.Dx() != mb.Dx() || sb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("%w: mask %v does not cover source %v", ErrMaskBlendFailed, mb, sb)
	}

	// 灰度图的 alpha 恒为不透明，混合前转成 Alpha 掩码
	alpha := &image.Alpha{Pix: mask.Pix, Stride: mask.Stride, Rect: mask.Rect}

	background := image.NewRGBA(sb)
	draw.DrawMask(background, sb, src, sb.Min, alpha, mb.Min, draw.Over)

	return imaging.Clone(background), nil
}

// Encode 编码为保留 alpha 的 PNG
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder produced no data", ErrEncodingFailed)
	}
	return buf.Bytes(), nil
}

// WriteTemp 原子写入新的抠图文件：同目录临时文件 fsync 后重命名，失败时临时文件被删除
func (c *Compositor) WriteTemp(data []byte) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	finalPath := filepath.Join(c.dir, utils.CutoutName(c.prefix))
	if err := renameio.WriteFile(finalPath, data, 0644, renameio.WithTempDir(c.dir)); err != nil {
		utils.Logger.Warn("failed to write cutout",
			zap.String("file", finalPath),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return finalPath, nil
}
