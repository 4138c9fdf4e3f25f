// Package charts rasterizes the dashboard figures (height histogram and
// city distribution pie) into WebP images served over HTTP.
package charts

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strconv"

	"github.com/skydash/skydash/internal/config"
	"github.com/skydash/skydash/internal/stats"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Geometry is rendered at 2x and downscaled with CatmullRom for smooth
// edges; text is drawn afterwards at target resolution so it stays crisp.
const superSample = 2

// sliceColors approximates the qualitative palette the original pie
// chart used.
var sliceColors = []color.NRGBA{
	{0xA6, 0xCE, 0xE3, 0xFF},
	{0x1F, 0x78, 0xB4, 0xFF},
	{0xB2, 0xDF, 0x8A, 0xFF},
	{0x33, 0xA0, 0x2C, 0xFF},
	{0xFB, 0x9A, 0x99, 0xFF},
	{0xE3, 0x1A, 0x1C, 0xFF},
	{0xFD, 0xBF, 0x6F, 0xFF},
	{0xFF, 0x7F, 0x00, 0xFF},
	{0xCA, 0xB2, 0xD6, 0xFF},
	{0x6A, 0x3D, 0x9A, 0xFF},
	{0xFF, 0xFF, 0x99, 0xFF},
	{0xB1, 0x59, 0x28, 0xFF},
}

// Renderer draws charts in the configured size and theme.
type Renderer struct {
	Width  int
	Height int
	Theme  config.Theme
}

// New builds a Renderer from the chart configuration.
func New(cfg *config.Config) *Renderer {
	return &Renderer{
		Width:  cfg.Charts.Width,
		Height: cfg.Charts.Height,
		Theme:  cfg.Theme,
	}
}

// EncodeWebP writes the image as lossy WebP.
func (r *Renderer) EncodeWebP(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 85})
}

// Histogram renders the binned height distribution as a bar chart.
func (r *Renderer) Histogram(bins []stats.Bin, title string) image.Image {
	const (
		marginLeft   = 48
		marginRight  = 16
		marginTop    = 40
		marginBottom = 36
	)

	bg := parseHex(r.Theme.Background, color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF})
	bar := parseHex(r.Theme.BarColor, color.NRGBA{0x80, 0x80, 0x80, 0xFF})
	txt := parseHex(r.Theme.TextColor, color.NRGBA{0x20, 0x20, 0x20, 0xFF})

	s := superSample
	canvas := image.NewRGBA(image.Rect(0, 0, r.Width*s, r.Height*s))
	fillRect(canvas, canvas.Bounds(), bg)

	plot := image.Rect(marginLeft*s, marginTop*s, (r.Width-marginRight)*s, (r.Height-marginBottom)*s)

	maxCount := 0
	for _, b := range bins {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	if maxCount > 0 {
		barWidth := plot.Dx() / len(bins)
		gap := s
		for i, b := range bins {
			h := plot.Dy() * b.Count / maxCount
			x0 := plot.Min.X + i*barWidth + gap
			x1 := plot.Min.X + (i+1)*barWidth - gap
			fillRect(canvas, image.Rect(x0, plot.Max.Y-h, x1, plot.Max.Y), bar)
		}
	}

	// Axes
	fillRect(canvas, image.Rect(plot.Min.X-s, plot.Min.Y, plot.Min.X, plot.Max.Y+s), txt)
	fillRect(canvas, image.Rect(plot.Min.X-s, plot.Max.Y, plot.Max.X, plot.Max.Y+s), txt)

	out := r.downscale(canvas)

	drawTextCentered(out, r.Width/2, marginTop/2+4, title, txt)
	drawText(out, marginLeft-len(strconv.Itoa(maxCount))*7-6, marginTop+10, strconv.Itoa(maxCount), txt)
	drawText(out, marginLeft-13, r.Height-marginBottom+4, "0", txt)

	if len(bins) > 0 {
		plotX0 := marginLeft
		plotW := r.Width - marginLeft - marginRight
		step := plotW / len(bins)
		for i, b := range bins {
			label := strconv.FormatFloat(b.From, 'f', 0, 64)
			drawTextCentered(out, plotX0+i*step, r.Height-marginBottom+16, label, txt)
		}
		last := strconv.FormatFloat(bins[len(bins)-1].To, 'f', 0, 64)
		drawTextCentered(out, plotX0+plotW, r.Height-marginBottom+16, last, txt)
	}

	return out
}

// Pie renders the top-cities distribution, slices counterclockwise from
// 140 degrees as in the original figure, with a legend on the right.
func (r *Renderer) Pie(counts []stats.CityCount, title string) image.Image {
	const (
		marginTop   = 40
		legendWidth = 200
		startAngle  = 140.0 * math.Pi / 180.0
	)

	bg := parseHex(r.Theme.Background, color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF})
	txt := parseHex(r.Theme.TextColor, color.NRGBA{0x20, 0x20, 0x20, 0xFF})

	s := superSample
	canvas := image.NewRGBA(image.Rect(0, 0, r.Width*s, r.Height*s))
	fillRect(canvas, canvas.Bounds(), bg)

	total := 0
	for _, c := range counts {
		total += c.Count
	}

	if total > 0 {
		cx := (r.Width - legendWidth) * s / 2
		cy := (marginTop + (r.Height-marginTop)/2) * s
		radius := (r.Height - marginTop - 24) * s / 2
		if max := (r.Width - legendWidth - 24) * s / 2; radius > max {
			radius = max
		}

		// Cumulative slice boundaries as fractions of the full turn.
		edges := make([]float64, len(counts)+1)
		acc := 0
		for i, c := range counts {
			acc += c.Count
			edges[i+1] = float64(acc) / float64(total)
		}

		for y := cy - radius; y <= cy+radius; y++ {
			for x := cx - radius; x <= cx+radius; x++ {
				dx, dy := float64(x-cx), float64(y-cy)
				if dx*dx+dy*dy > float64(radius)*float64(radius) {
					continue
				}

				// Counterclockwise angle from the start angle, in turns.
				a := math.Atan2(-dy, dx) - startAngle
				for a < 0 {
					a += 2 * math.Pi
				}
				frac := a / (2 * math.Pi)

				for i := range counts {
					if frac >= edges[i] && frac < edges[i+1] {
						canvas.Set(x, y, sliceColors[i%len(sliceColors)])
						break
					}
				}
			}
		}
	}

	out := r.downscale(canvas)

	drawTextCentered(out, r.Width/2, marginTop/2+4, title, txt)

	legendX := r.Width - legendWidth + 8
	legendY := marginTop + 8
	for i, c := range counts {
		y := legendY + i*18
		if y+12 > r.Height {
			break
		}
		fillRect(out, image.Rect(legendX, y, legendX+12, y+12), sliceColors[i%len(sliceColors)])
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(c.Count) / float64(total)
		}
		drawText(out, legendX+18, y+10, fmt.Sprintf("%s %.1f%%", c.City, pct), txt)
	}

	return out
}

// downscale shrinks the supersampled canvas to the target size.
func (r *Renderer) downscale(canvas *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect, image.NewUniform(col), image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, x, y int, s string, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawTextCentered(img *image.RGBA, cx, y int, s string, col color.Color) {
	w := font.MeasureString(basicfont.Face7x13, s).Ceil()
	drawText(img, cx-w/2, y, s, col)
}

// parseHex decodes a "#RRGGBB" color, falling back when malformed.
func parseHex(s string, fallback color.NRGBA) color.NRGBA {
	if len(s) != 7 || s[0] != '#' {
		return fallback
	}
	var c color.NRGBA
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return fallback
	}
	c.A = 0xFF
	return c
}
