package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/LiftKit/utils"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Capability 视觉后端在当前平台上支持的分割方式
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilitySaliency
	CapabilityInstanceMask
)

func (c Capability) String() string {
	switch c {
	case CapabilitySaliency:
		return "saliency"
	case CapabilityInstanceMask:
		return "instance_mask"
	default:
		return "none"
	}
}

// InstanceObservation 一次实例分割的结果
//
// Labels 是后端分辨率下的实例标签图，0 为背景，其余值为实例编号。
type InstanceObservation struct {
	Labels       *image.Gray
	AllInstances []uint8
}

// ScaledMask 把给定实例合并成一张前景掩码并缩放到 width x height
func (o InstanceObservation) ScaledMask(instances []uint8, width, height int) (*image.Gray, error) {
	if o.Labels == nil || o.Labels.Bounds().Empty() {
		return nil, fmt.Errorf("observation has no label map")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}

	var keep [256]bool
	for _, id := range instances {
		if id != 0 {
			keep[id] = true
		}
	}

	lb := o.Labels.Bounds()
	native := image.NewGray(image.Rect(0, 0, lb.Dx(), lb.Dy()))
	for y := 0; y < lb.Dy(); y++ {
		srcRow := o.Labels.Pix[y*o.Labels.Stride:]
		dstRow := native.Pix[y*native.Stride:]
		for x := 0; x < lb.Dx(); x++ {
			if keep[srcRow[x]] {
				dstRow[x] = 0xff
			}
		}
	}

	if lb.Dx() == width && lb.Dy() == height {
		return native, nil
	}
	scaled := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), native, native.Bounds(), draw.Src, nil)
	return scaled, nil
}

// SaliencyObservation 显著性检测结果，Mask 保持后端原始分辨率
type SaliencyObservation struct {
	Mask *image.Gray
}

// VisionBackend 平台视觉能力的桥接
type VisionBackend interface {
	Capability() Capability
	DetectInstances(ctx context.Context, img *image.NRGBA) ([]InstanceObservation, error)
	DetectSaliency(ctx context.Context, img *image.NRGBA) ([]SaliencyObservation, error)
}

// Segmenter 负责从图片中分割前景
type Segmenter struct {
	backend    VisionBackend
	capability Capability
	timeout    time.Duration
}

// NewSegmenter 在构造时确定一次后端能力，之后每次调用不再检查
func NewSegmenter(backend VisionBackend, timeout time.Duration) *Segmenter {
	capability := CapabilityNone
	if backend != nil {
		capability = backend.Capability()
	}
	return &Segmenter{
		backend:    backend,
		capability: capability,
		timeout:    timeout,
	}
}

func (s *Segmenter) Capability() Capability {
	return s.capability
}

// Segment 生成前景掩码。实例分割时掩码与原图同尺寸，显著性检测时保持后端分辨率
func (s *Segmenter) Segment(ctx context.Context, src *image.NRGBA) (*image.Gray, error) {
	if s.capability == CapabilityNone {
		return nil, ErrUnavailable
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	detect := s.saliencyMask
	if s.capability == CapabilityInstanceMask {
		detect = s.instanceMask
	}

	// 后端调用可能不响应 ctx，超时或取消时直接返回，不等它结束
	done := make(chan detection, 1)
	go func() {
		mask, err := detect(ctx, src)
		done <- detection{mask: mask, err: err}
	}()

	var mask *image.Gray
	select {
	case d := <-done:
		if d.err != nil {
			return nil, d.err
		}
		mask = d.mask
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, ctx.Err())
	}

	utils.Logger.Debug("foreground mask generated",
		zap.String("strategy", s.capability.String()),
		zap.Int("mask_width", mask.Bounds().Dx()),
		zap.Int("mask_height", mask.Bounds().Dy()))

	return mask, nil
}

type detection struct {
	mask *image.Gray
	err  error
}

func (s *Segmenter) instanceMask(ctx context.Context, src *image.NRGBA) (*image.Gray, error) {
	observations, err := s.backend.DetectInstances(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: no foreground instances", ErrRequestFailed)
	}

	observation := observations[0]
	b := src.Bounds()
	mask, err := observation.ScaledMask(observation.AllInstances, b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return mask, nil
}

func (s *Segmenter) saliencyMask(ctx context.Context, src *image.NRGBA) (*image.Gray, error) {
	observations, err := s.backend.DetectSaliency(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if len(observations) == 0 || observations[0].Mask == nil {
		return nil, fmt.Errorf("%w: no salient objects", ErrRequestFailed)
	}
	return observations[0].Mask, nil
}
