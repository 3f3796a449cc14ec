//go:build !nocv

package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// SaliencyDetector 基于梯度的显著性检测
type SaliencyDetector struct {
	maskProcessor *MaskProcessor
}

func NewSaliencyDetector(maskProcessor *MaskProcessor) *SaliencyDetector {
	return &SaliencyDetector{maskProcessor: maskProcessor}
}

// gradientMap Sobel 梯度幅值经大核模糊并归一化到 0-255
func (sd *SaliencyDetector) gradientMap(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	gradY := gocv.NewMat()
	defer gradX.Close()
	defer gradY.Close()

	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absGradX := gocv.NewMat()
	absGradY := gocv.NewMat()
	defer absGradX.Close()
	defer absGradY.Close()

	gocv.ConvertScaleAbs(gradX, &absGradX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absGradY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absGradX, 0.5, absGradY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	normalized := gocv.NewMat()
	gocv.Normalize(blurred, &normalized, 0, 255, gocv.NormMinMax)
	return normalized
}

// Detect 计算二值显著性图 (Otsu)
func (sd *SaliencyDetector) Detect(img *gocv.Mat) gocv.Mat {
	gradient := sd.gradientMap(img)
	defer gradient.Close()

	saliency := gocv.NewMat()
	gocv.Threshold(gradient, &saliency, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	return saliency
}

// Objectness 把显著区域整理成实心物体并羽化边缘，返回软掩码
func (sd *SaliencyDetector) Objectness(img *gocv.Mat, minAreaRatio float64) gocv.Mat {
	saliency := sd.Detect(img)
	defer saliency.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 11, Y: 11})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(saliency, &dilated, kernel)

	minArea := minAreaRatio * float64(img.Rows()*img.Cols())
	objects := sd.maskProcessor.FillObjects(&dilated, minArea)
	defer objects.Close()

	ksize := max(3, min(img.Rows(), img.Cols())/64*2+1)
	return sd.maskProcessor.Feather(&objects, ksize)
}

// ExtractRect 提取最大显著区域的边界矩形，留 5% 边距
func (sd *SaliencyDetector) ExtractRect(saliency *gocv.Mat, width, height int) image.Rectangle {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 21, Y: 21})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return insetRect(width, height, int(float64(width)*0.1))
	}

	var maxRect image.Rectangle
	maxArea := 0.0

	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > maxArea {
			maxArea = area
			maxRect = gocv.BoundingRect(contours.At(i))
		}
	}

	padding := int(float64(maxRect.Dx()) * 0.05)
	maxRect.Min.X = max(0, maxRect.Min.X-padding)
	maxRect.Min.Y = max(0, maxRect.Min.Y-padding)
	maxRect.Max.X = min(width, maxRect.Max.X+padding)
	maxRect.Max.Y = min(height, maxRect.Max.Y+padding)

	inner := maxRect.Intersect(insetRect(width, height, 1))
	if inner.Empty() {
		return insetRect(width, height, 1)
	}
	return inner
}

// CreateMask 根据显著性图生成 GrabCut 初始掩码：边框为确定背景，显著区域为可能前景，其余为可能背景。
// 没有可能前景时返回空 Mat，调用方改用矩形初始化
func (sd *SaliencyDetector) CreateMask(saliency *gocv.Mat, width, height int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gcPRBGD, 0, 0, 0), height, width, gocv.MatTypeCV8U)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 11, Y: 11})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	borderSize := max(1, int(float64(width)*0.03))
	foreground := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < borderSize || x >= width-borderSize ||
				y < borderSize || y >= height-borderSize {
				mask.SetUCharAt(y, x, gcBGD)
				continue
			}
			if dilated.GetUCharAt(y, x) > 128 {
				mask.SetUCharAt(y, x, gcPRFGD)
				foreground++
			}
		}
	}

	if foreground == 0 {
		mask.Close()
		return gocv.NewMat()
	}
	return mask
}
