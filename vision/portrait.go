//go:build !nocv

package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// PortraitDetector 通过肤色比例判断人像，并用肤色区域补全人像掩码
type PortraitDetector struct {
	skinRatio float64
}

func NewPortraitDetector() *PortraitDetector {
	return &PortraitDetector{skinRatio: 0.15}
}

// DetectSkin YCrCb 阈值肤色检测
func (pd *PortraitDetector) DetectSkin(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	lower := gocv.NewScalar(0, 133, 77, 0)
	upper := gocv.NewScalar(255, 173, 127, 255)

	skinMask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, lower, upper, &skinMask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()

	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphOpen, kernel)

	return skinMask
}

func (pd *PortraitDetector) IsPortrait(img *gocv.Mat) bool {
	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	totalPixels := float64(img.Rows() * img.Cols())
	skinPixels := float64(gocv.CountNonZero(skinMask))

	return skinPixels/totalPixels > pd.skinRatio
}

// EnhancePortraitMask 把膨胀后的肤色区域并入前景掩码
func (pd *PortraitDetector) EnhancePortraitMask(originalMask, img *gocv.Mat) gocv.Mat {
	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilatedSkin := gocv.NewMat()
	defer dilatedSkin.Close()
	gocv.Dilate(skinMask, &dilatedSkin, kernel)

	enhanced := gocv.NewMat()
	gocv.BitwiseOr(*originalMask, dilatedSkin, &enhanced)

	return enhanced
}
