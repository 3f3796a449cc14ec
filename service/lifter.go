package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TIANLI0/LiftKit/utils"
	"go.uber.org/zap"
)

// Cutout 一次抠图的结果，Path 指向新写入的 PNG，由调用方负责清理
type Cutout struct {
	Path     string
	Width    int
	Height   int
	Strategy Capability
}

// Lifter 串联分割和合成。每次调用互相独立，没有共享的可变状态
type Lifter struct {
	segmenter  *Segmenter
	compositor *Compositor
}

func NewLifter(segmenter *Segmenter, compositor *Compositor) *Lifter {
	return &Lifter{
		segmenter:  segmenter,
		compositor: compositor,
	}
}

// Available 当前构建是否能抠图，不会触发任何解码或推理
func (l *Lifter) Available() bool {
	return l.segmenter != nil && l.segmenter.Capability() != CapabilityNone
}

func (l *Lifter) Capability() Capability {
	if l.segmenter == nil {
		return CapabilityNone
	}
	return l.segmenter.Capability()
}

// Lift 从 uri 指向的图片中提取主体，返回透明背景 PNG 的路径
func (l *Lifter) Lift(ctx context.Context, uri string) (*Cutout, error) {
	if !l.Available() {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: empty source uri", ErrInvalidInput)
	}

	startTime := time.Now()

	src, err := LoadSource(uri)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	utils.Logger.Info("lifting subject",
		zap.String("source", uri),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.String("strategy", l.segmenter.Capability().String()))

	mask, err := l.segmenter.Segment(ctx, src)
	if err != nil {
		return nil, err
	}

	path, err := l.compositor.Composite(src, mask)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("cutout written",
		zap.String("path", path),
		zap.Duration("duration", time.Since(startTime)))

	return &Cutout{
		Path:     path,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Strategy: l.segmenter.Capability(),
	}, nil
}
