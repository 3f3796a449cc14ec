//go:build !nocv

package vision

import (
	"image"

	"github.com/TIANLI0/LiftKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCut 掩码取值
const (
	gcBGD   = 0
	gcFGD   = 1
	gcPRBGD = 2
	gcPRFGD = 3
)

// minGrabCutSide 初始矩形四周至少各留一个背景像素，中间至少一个前景像素
const minGrabCutSide = 3

// insetRect 向内收缩 border 的初始矩形，border 被限制在 [1, (短边-1)/2]
func insetRect(width, height, border int) image.Rectangle {
	border = max(1, min(border, (min(width, height)-1)/2))
	return image.Rect(border, border, width-border, height-border)
}

// foreground 在工作尺寸的 BGR 图像上运行显著性引导的 GrabCut，返回 0/255 前景掩码。
// 图像短边不小于 minGrabCutSide
func (b *Backend) foreground(img *gocv.Mat) gocv.Mat {
	width := img.Cols()
	height := img.Rows()

	complexity := b.complexityAnalyzer.Analyze(img)
	utils.Logger.Debug("scene analyzed",
		zap.String("level", complexity.Level),
		zap.Float64("edge_density", complexity.EdgeDensity),
		zap.Float64("color_variance", complexity.ColorVariance),
		zap.Bool("is_portrait", complexity.IsPortrait))

	var initRect image.Rectangle
	var mask gocv.Mat

	if complexity.Level == LevelSimple {
		border := b.cfg.BorderSize
		if border < 10 {
			border = int(float64(width) * 0.05)
		}
		initRect = insetRect(width, height, border)
		mask = gocv.NewMat()
	} else {
		saliencyMap := b.saliencyDetector.Detect(img)
		defer saliencyMap.Close()

		initRect = b.saliencyDetector.ExtractRect(&saliencyMap, width, height)
		if gocv.CountNonZero(saliencyMap) == 0 {
			mask = gocv.NewMat()
		} else {
			mask = b.saliencyDetector.CreateMask(&saliencyMap, width, height)
		}
	}
	defer mask.Close()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := complexity.Iterations(b.cfg.Iterations)
	if mask.Empty() {
		gocv.GrabCut(*img, &mask, initRect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)
	} else {
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)
	}

	// 第一轮把所有像素判为背景时没有前景样本，不能再迭代
	if complexity.Level != LevelSimple && b.hasForeground(&mask) {
		gocv.GrabCut(*img, &mask, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)
	}

	fgMask := b.maskProcessor.ExtractForeground(&mask)

	if complexity.IsPortrait {
		enhanced := b.portraitDetector.EnhancePortraitMask(&fgMask, img)
		fgMask.Close()
		fgMask = enhanced
	}

	kernelSize := 3
	if complexity.Level == LevelComplex || complexity.Level == LevelPortrait {
		kernelSize = 5
	}
	optimized := b.maskProcessor.MorphologyOptimize(&fgMask, kernelSize)
	fgMask.Close()
	fgMask = optimized

	if complexity.Level != LevelSimple {
		refined := b.maskProcessor.RefineEdges(&fgMask)
		fgMask.Close()
		fgMask = refined
	}

	return fgMask
}

func (b *Backend) hasForeground(mask *gocv.Mat) bool {
	fg := b.maskProcessor.ExtractForeground(mask)
	defer fg.Close()
	return gocv.CountNonZero(fg) > 0
}

// labelInstances 连通域标记，面积不小于 minArea 的连通域成为实例，编号从 1 开始
func labelInstances(fgMask *gocv.Mat, minArea int) (*image.Gray, []uint8) {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	gocv.ConnectedComponentsWithStats(*fgMask, &labels, &stats, &centroids)

	remap := make([]uint8, stats.Rows())
	var instances []uint8
	for i := 1; i < stats.Rows() && len(instances) < 255; i++ {
		if int(stats.GetIntAt(i, int(gocv.CCStatArea))) < minArea {
			continue
		}
		id := uint8(len(instances) + 1)
		instances = append(instances, id)
		remap[i] = id
	}

	rows, cols := labels.Rows(), labels.Cols()
	out := image.NewGray(image.Rect(0, 0, cols, rows))
	if len(instances) == 0 {
		return out, nil
	}

	for y := 0; y < rows; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < cols; x++ {
			l := int(labels.GetIntAt(y, x))
			if l > 0 && l < len(remap) {
				row[x] = remap[l]
			}
		}
	}

	return out, instances
}
