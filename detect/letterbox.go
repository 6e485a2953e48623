package detect

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/yixinin/camsight/pipeline"
)

// Letterbox scales img to fit width x height keeping its aspect ratio,
// centers it on a black canvas and returns the canvas as a [1,3,H,W]
// tensor with channels in [0,1].
func Letterbox(img image.Image, width, height int) (Tensor, pipeline.Geometry) {
	geo := pipeline.Geometry{InputWidth: width, InputHeight: height}
	canvas := imaging.New(width, height, color.Black)

	b := img.Bounds()
	if b.Dx() > 0 && b.Dy() > 0 {
		geo.Scale = math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
		w := int(math.Round(float64(b.Dx()) * geo.Scale))
		h := int(math.Round(float64(b.Dy()) * geo.Scale))
		geo.PadX = (width - w) / 2
		geo.PadY = (height - h) / 2
		if w > 0 && h > 0 {
			resized := imaging.Resize(img, w, h, imaging.Linear)
			canvas = imaging.Paste(canvas, resized, image.Pt(geo.PadX, geo.PadY))
		}
	}
	return chw(canvas), geo
}

func chw(img *image.NRGBA) Tensor {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := y*w + x
			px := row[x*4:]
			data[p] = float32(px[0]) / 255
			data[plane+p] = float32(px[1]) / 255
			data[2*plane+p] = float32(px[2]) / 255
		}
	}
	return Tensor{Dims: []int{1, 3, h, w}, Data: data}
}
