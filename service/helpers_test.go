package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBackend 可并发调用的假视觉后端
type fakeBackend struct {
	capability Capability
	instances  []InstanceObservation
	saliency   []SaliencyObservation
	err        error
	block      bool
	// hang 非空时忽略 ctx，直到 hang 被关闭
	hang chan struct{}

	capabilityCalls atomic.Int32
	instanceCalls   atomic.Int32
	saliencyCalls   atomic.Int32
}

func (f *fakeBackend) Capability() Capability {
	f.capabilityCalls.Add(1)
	return f.capability
}

func (f *fakeBackend) DetectInstances(ctx context.Context, img *image.NRGBA) ([]InstanceObservation, error) {
	f.instanceCalls.Add(1)
	if f.hang != nil {
		<-f.hang
		return f.instances, f.err
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.instances, f.err
}

func (f *fakeBackend) DetectSaliency(ctx context.Context, img *image.NRGBA) ([]SaliencyObservation, error) {
	f.saliencyCalls.Add(1)
	if f.hang != nil {
		<-f.hang
		return f.saliency, f.err
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.saliency, f.err
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// leftHalfMask 左半边为前景
func leftHalfMask(w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	return mask
}

// fullLabels 所有像素属于实例 1
func fullLabels(w, h int) InstanceObservation {
	labels := image.NewGray(image.Rect(0, 0, w, h))
	for i := range labels.Pix {
		labels.Pix[i] = 1
	}
	return InstanceObservation{Labels: labels, AllInstances: []uint8{1}}
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

// exifOrientationSegment 只含 Orientation 标签的 APP1 段 (大端 TIFF)
func exifOrientationSegment(o Orientation) []byte {
	payload := []byte("Exif\x00\x00")
	payload = append(payload, 'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08)
	payload = append(payload, 0x00, 0x01)
	payload = append(payload, 0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, byte(o), 0x00, 0x00)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00)

	size := len(payload) + 2
	segment := []byte{0xff, 0xe1, byte(size >> 8), byte(size)}
	return append(segment, payload...)
}

// orientedJPEG 编码 JPEG 并在 SOI 之后插入 EXIF 方向
func orientedJPEG(t *testing.T, img image.Image, o Orientation) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	raw := buf.Bytes()
	require.Equal(t, []byte{0xff, 0xd8}, raw[:2])

	out := append([]byte{}, raw[:2]...)
	out = append(out, exifOrientationSegment(o)...)
	return append(out, raw[2:]...)
}

// leftBandImage 16x9，左侧 4 列为红色，其余为黑色
func leftBandImage() *image.NRGBA {
	img := solidNRGBA(16, 9, color.NRGBA{A: 255})
	for y := 0; y < 9; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}
