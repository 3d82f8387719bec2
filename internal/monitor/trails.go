package monitor

import (
	"fmt"
	"image/color"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// handleTrailsPNG renders the recorded box-centre trajectory of every
// track in the current run as a PNG. Image coordinates: Y grows downward,
// so the axis is inverted to match the camera view.
func (ws *WebServer) handleTrailsPNG(w http.ResponseWriter, r *http.Request) {
	if ws.detlog == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no detection log configured")
		return
	}
	points, err := ws.detlog.Trails()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query trails: %v", err))
		return
	}
	if len(points) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no recorded tracks yet")
		return
	}

	// Group into per-track trails. Query order is (track, frame) so each
	// trail is already in frame order.
	var order []int64
	trails := make(map[int64]plotter.XYs)
	classes := make(map[int64]string)
	maxY := 0.0
	for _, p := range points {
		if _, seen := trails[p.TrackID]; !seen {
			order = append(order, p.TrackID)
			classes[p.TrackID] = p.Class
		}
		trails[p.TrackID] = append(trails[p.TrackID], plotter.XY{X: p.X, Y: p.Y})
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	pl := plot.New()
	pl.Title.Text = "Track Trails"
	pl.X.Label.Text = "X (px)"
	pl.Y.Label.Text = "Y (px)"

	colors := trailColors(len(order))
	for i, id := range order {
		pts := trails[id]
		// Flip to image orientation.
		flipped := make(plotter.XYs, len(pts))
		for j, xy := range pts {
			flipped[j] = plotter.XY{X: xy.X, Y: maxY - xy.Y}
		}
		line, err := plotter.NewLine(flipped)
		if err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("build trail: %v", err))
			return
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		pl.Add(line)
		pl.Legend.Add(fmt.Sprintf("ID%d %s", id, classes[id]), line)
	}
	pl.Legend.Top = true
	pl.Legend.Left = false

	wt, err := pl.WriterTo(10*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render trails: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Client went away mid-write; nothing to do.
		return
	}
}

// trailColors returns n distinct hues.
func trailColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
