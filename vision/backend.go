//go:build !nocv

package vision

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/service"
	"github.com/TIANLI0/LiftKit/utils"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Backend 基于 OpenCV 的视觉后端
type Backend struct {
	cfg                config.SegmentationConfig
	capability         service.Capability
	complexityAnalyzer *ComplexityAnalyzer
	saliencyDetector   *SaliencyDetector
	maskProcessor      *MaskProcessor
	portraitDetector   *PortraitDetector
}

func NewBackend(cfg *config.SegmentationConfig) *Backend {
	maskProcessor := NewMaskProcessor()
	portraitDetector := NewPortraitDetector()

	version := gocv.OpenCVVersion()
	capability := ProbeCapability(version)
	utils.Logger.Info("vision backend ready",
		zap.String("opencv", version),
		zap.String("capability", capability.String()))

	return &Backend{
		cfg:                *cfg,
		capability:         capability,
		complexityAnalyzer: NewComplexityAnalyzer(portraitDetector),
		saliencyDetector:   NewSaliencyDetector(maskProcessor),
		maskProcessor:      maskProcessor,
		portraitDetector:   portraitDetector,
	}
}

// ProbeCapability OpenCV 4.5 及以上支持实例分割，更早的版本只做显著性检测
func ProbeCapability(version string) service.Capability {
	major, minor, ok := parseVersion(version)
	if !ok {
		return service.CapabilityNone
	}
	if major > 4 || (major == 4 && minor >= 5) {
		return service.CapabilityInstanceMask
	}
	return service.CapabilitySaliency
}

func parseVersion(version string) (int, int, bool) {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minorPart := parts[1]
	if i := strings.IndexFunc(minorPart, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorPart = minorPart[:i]
	}
	minor, err := strconv.Atoi(minorPart)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func (b *Backend) Capability() service.Capability {
	return b.capability
}

// DetectInstances 返回一个观测结果，标签图为工作尺寸，包含全部前景实例
func (b *Backend) DetectInstances(ctx context.Context, img *image.NRGBA) ([]service.InstanceObservation, error) {
	startTime := time.Now()

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	working := smartResize(&src, b.cfg.WorkingMaxSide)
	defer working.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 太小或没有任何对比度的画面里没有可分割的主体
	if min(working.Rows(), working.Cols()) < minGrabCutSide || isFlat(&working) {
		return nil, nil
	}

	fgMask := b.foreground(&working)
	defer fgMask.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minArea := int(b.cfg.MinInstanceArea * float64(working.Rows()*working.Cols()))
	labels, instances := labelInstances(&fgMask, minArea)

	utils.Logger.Debug("instances detected",
		zap.Int("instances", len(instances)),
		zap.Int("working_width", working.Cols()),
		zap.Int("working_height", working.Rows()),
		zap.Duration("duration", time.Since(startTime)))

	if len(instances) == 0 {
		return nil, nil
	}
	return []service.InstanceObservation{{Labels: labels, AllInstances: instances}}, nil
}

// DetectSaliency 在缩小后的图像上检测显著物体，掩码保持缩小后的分辨率
func (b *Backend) DetectSaliency(ctx context.Context, img *image.NRGBA) ([]service.SaliencyObservation, error) {
	startTime := time.Now()

	var small image.Image = img
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if longest := max(w, h); b.cfg.SaliencyMaxSide > 0 && longest > b.cfg.SaliencyMaxSide {
		scale := float64(b.cfg.SaliencyMaxSide) / float64(longest)
		small = resize.Resize(uint(max(1, int(float64(w)*scale))), uint(max(1, int(float64(h)*scale))), img, resize.Bilinear)
	}

	mat, err := gocv.ImageToMatRGB(small)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if isFlat(&mat) {
		return nil, nil
	}

	soft := b.saliencyDetector.Objectness(&mat, b.cfg.MinInstanceArea)
	defer soft.Close()

	if gocv.CountNonZero(soft) == 0 {
		return nil, nil
	}

	mask, err := matToGray(&soft)
	if err != nil {
		return nil, err
	}

	utils.Logger.Debug("saliency detected",
		zap.Int("mask_width", mask.Bounds().Dx()),
		zap.Int("mask_height", mask.Bounds().Dy()),
		zap.Duration("duration", time.Since(startTime)))

	return []service.SaliencyObservation{{Mask: mask}}, nil
}

// smartResize 最长边超过 maxSize 时等比缩小
func smartResize(img *gocv.Mat, maxSize int) gocv.Mat {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img.Clone()
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized
}

// isFlat 所有通道的标准差都低于 1 时视为纯色画面
func isFlat(img *gocv.Mat) bool {
	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(*img, &mean, &stddev)

	for i := 0; i < stddev.Rows(); i++ {
		if stddev.GetDoubleAt(i, 0) >= 1 {
			return false
		}
	}
	return true
}

func matToGray(m *gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mask: %w", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected mask type %T", img)
	}
	return gray, nil
}
