//go:build !nocv

package vision

import (
	"gocv.io/x/gocv"
)

// 场景复杂度
const (
	LevelSimple   = "simple"
	LevelMedium   = "medium"
	LevelComplex  = "complex"
	LevelPortrait = "portrait"
)

// ComplexityAnalyzer 负责分析图像的复杂度
type ComplexityAnalyzer struct {
	portraitDetector *PortraitDetector
}

type ComplexityInfo struct {
	Level         string
	EdgeDensity   float64
	ColorVariance float64
	IsPortrait    bool
}

func NewComplexityAnalyzer(portraitDetector *PortraitDetector) *ComplexityAnalyzer {
	return &ComplexityAnalyzer{
		portraitDetector: portraitDetector,
	}
}

// Analyze 分析图像的复杂度，img 为 BGR
func (ca *ComplexityAnalyzer) Analyze(img *gocv.Mat) ComplexityInfo {
	edgeDensity := ca.edgeDensity(img)
	colorVariance := ca.colorVariance(img)
	isPortrait := ca.portraitDetector.IsPortrait(img)

	var level string
	switch {
	case isPortrait:
		level = LevelPortrait
	case edgeDensity < 0.05 && colorVariance < 30:
		level = LevelSimple
	case edgeDensity > 0.15 || colorVariance > 60:
		level = LevelComplex
	default:
		level = LevelMedium
	}

	return ComplexityInfo{
		Level:         level,
		EdgeDensity:   edgeDensity,
		ColorVariance: colorVariance,
		IsPortrait:    isPortrait,
	}
}

// Iterations 根据复杂度调整 GrabCut 迭代次数
func (ci ComplexityInfo) Iterations(base int) int {
	switch ci.Level {
	case LevelSimple:
		return max(3, base-2)
	case LevelPortrait:
		return base + 1
	case LevelComplex:
		return base + 2
	default:
		return base
	}
}

func (ca *ComplexityAnalyzer) edgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	edgePixels := float64(gocv.CountNonZero(edges))
	totalPixels := float64(img.Rows() * img.Cols())

	return edgePixels / totalPixels
}

// colorVariance Lab 空间三个通道标准差的均值
func (ca *ComplexityAnalyzer) colorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	variance := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		variance += stddev.GetDoubleAt(i, 0)
	}

	return variance / float64(stddev.Rows())
}
