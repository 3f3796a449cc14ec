//go:build !nocv

package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// MaskProcessor 负责处理图像掩码
type MaskProcessor struct{}

func NewMaskProcessor() *MaskProcessor {
	return &MaskProcessor{}
}

// ExtractForeground 从 GrabCut 掩码中取出确定前景和可能前景，输出 0/255
func (mp *MaskProcessor) ExtractForeground(mask *gocv.Mat) gocv.Mat {
	fgMask := gocv.NewMat()
	tmp1 := gocv.NewMatFromScalar(gocv.NewScalar(gcFGD, 0, 0, 0), gocv.MatTypeCV8U)
	defer tmp1.Close()
	gocv.Compare(*mask, tmp1, &fgMask, gocv.CompareEQ)

	fgMaskPr := gocv.NewMat()
	defer fgMaskPr.Close()
	tmp2 := gocv.NewMatFromScalar(gocv.NewScalar(gcPRFGD, 0, 0, 0), gocv.MatTypeCV8U)
	defer tmp2.Close()
	gocv.Compare(*mask, tmp2, &fgMaskPr, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fgMask, fgMaskPr, &combined)
	fgMask.Close()

	return combined
}

// MorphologyOptimize 开运算去噪点，闭运算补小洞
func (mp *MaskProcessor) MorphologyOptimize(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	opened.Close()

	return closed
}

// RefineEdges 精细化掩码边缘
func (mp *MaskProcessor) RefineEdges(mask *gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2, Y: 2})
	defer kernel.Close()

	refined := gocv.NewMat()
	gocv.Dilate(*mask, &refined, kernel)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(refined, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)
	refined.Close()

	final := gocv.NewMat()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)
	blurred.Close()

	return final
}

// FillObjects 只保留面积不小于 minArea 的外轮廓并填充
func (mp *MaskProcessor) FillObjects(mask *gocv.Mat, minArea float64) gocv.Mat {
	filled := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)

	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < minArea {
			continue
		}
		gocv.DrawContours(&filled, contours, i, white, -1)
	}

	return filled
}

// Feather 模糊边缘得到软掩码，ksize 必须为奇数
func (mp *MaskProcessor) Feather(mask *gocv.Mat, ksize int) gocv.Mat {
	feathered := gocv.NewMat()
	gocv.GaussianBlur(*mask, &feathered, image.Point{X: ksize, Y: ksize}, 0, 0, gocv.BorderDefault)
	return feathered
}
