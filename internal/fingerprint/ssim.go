package fingerprint

import (
	"image"

	"github.com/nfnt/resize"
)

// Structural similarity over 8x8 blocks of the luma channel, both images
// resized to a common 256x256 frame first. Scores range from -1 to 1 with 1
// meaning structurally identical.
const (
	ssimFrame = 256
	ssimBlock = 8

	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// SSIM computes the mean structural similarity between two images.
func SSIM(a, b image.Image) float64 {
	grayA := lumaPlane(resize.Resize(ssimFrame, ssimFrame, a, resize.Bilinear))
	grayB := lumaPlane(resize.Resize(ssimFrame, ssimFrame, b, resize.Bilinear))

	var total float64
	blocks := 0
	for by := 0; by+ssimBlock <= ssimFrame; by += ssimBlock {
		for bx := 0; bx+ssimBlock <= ssimFrame; bx += ssimBlock {
			total += blockSSIM(grayA, grayB, bx, by)
			blocks++
		}
	}
	if blocks == 0 {
		return 0
	}
	return total / float64(blocks)
}

func lumaPlane(img image.Image) []float64 {
	bounds := img.Bounds()
	plane := make([]float64, 0, ssimFrame*ssimFrame)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			plane = append(plane, luma)
		}
	}
	return plane
}

func blockSSIM(a, b []float64, bx, by int) float64 {
	const n = ssimBlock * ssimBlock

	var sumA, sumB float64
	for y := 0; y < ssimBlock; y++ {
		row := (by + y) * ssimFrame
		for x := 0; x < ssimBlock; x++ {
			idx := row + bx + x
			sumA += a[idx]
			sumB += b[idx]
		}
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, cov float64
	for y := 0; y < ssimBlock; y++ {
		row := (by + y) * ssimFrame
		for x := 0; x < ssimBlock; x++ {
			idx := row + bx + x
			da := a[idx] - meanA
			db := b[idx] - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n - 1
	varB /= n - 1
	cov /= n - 1

	numerator := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return numerator / denominator
}
