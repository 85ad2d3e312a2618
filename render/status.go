package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/image/font"

	fallsense "github.com/sentinelcare/go-fallsense"
)

var (
	clrRed    = color.RGBA{R: 255, A: 255}
	clrOrange = color.RGBA{R: 255, G: 165, A: 255}
	clrYellow = color.RGBA{R: 255, G: 255, A: 255}
	clrTeal   = color.RGBA{G: 200, B: 255, A: 255}
	clrGreen  = color.RGBA{G: 200, A: 255}
	clrGrey   = color.RGBA{R: 180, G: 180, B: 180, A: 255}
)

// StatusColor returns the banner color for a frame result, fall states win
// over near fall states
func StatusColor(res fallsense.FrameResult) color.RGBA {

	switch {
	case res.RFStatus == fallsense.RFFall:
		return clrRed
	case res.RFStatus == fallsense.RFConfirming:
		return clrOrange
	case res.NearFallStatus == fallsense.NearFall:
		return clrYellow
	case res.NearFallStatus == fallsense.Sitting:
		return clrTeal
	default:
		return clrGreen
	}
}

// Banner draws the per frame status line in the top left corner of the
// image, colored by severity, with any fired rules on a second line
func Banner(img *gocv.Mat, res fallsense.FrameResult, font Font) {

	text := fmt.Sprintf("rf: %s  rules: %s", res.RFStatus, res.NearFallStatus)

	font.Color = StatusColor(res)
	putText(img, text, image.Pt(20, 40), font)

	if len(res.FiredRules) > 0 {
		putText(img, strings.Join(res.FiredRules, " "), image.Pt(20, 70), font)
	}
}

// BannerTTF draws the status line with a TTF face, needed when the overlay
// text uses glyphs outside the Hershey repertoire
func BannerTTF(img *gocv.Mat, res fallsense.FrameResult, face font.Face) error {

	text := fmt.Sprintf("rf: %s  rules: %s", res.RFStatus, res.NearFallStatus)

	if err := DrawTTFText(img, text, image.Pt(20, 40), face, StatusColor(res)); err != nil {
		return err
	}

	if len(res.FiredRules) > 0 {
		return DrawTTFText(img, strings.Join(res.FiredRules, " "),
			image.Pt(20, 70), face, StatusColor(res))
	}

	return nil
}

// NoPoseBanner draws the marker shown when no person was detected in the
// frame
func NoPoseBanner(img *gocv.Mat, font Font) {
	font.Color = clrGrey
	putText(img, "no pose detected", image.Pt(20, 40), font)
}

// putText writes a single text line using the font settings
func putText(img *gocv.Mat, text string, pt image.Point, font Font) {
	gocv.PutTextWithParams(img, text, pt, font.Face, font.Scale, font.Color,
		font.Thickness, font.LineType, false)
}
