package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix points chart pages at the public echarts asset
// bundle so the binary stays self-contained.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTargetsChart renders the confirmed-target count per frame for the
// current run as an echarts line chart. Only flushed rows are visible.
func (ws *WebServer) handleTargetsChart(w http.ResponseWriter, r *http.Request) {
	if ws.detlog == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no detection log configured")
		return
	}
	counts, err := ws.detlog.ConfirmedCounts()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query confirmed counts: %v", err))
		return
	}
	if len(counts) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no recorded frames yet")
		return
	}

	frames := make([]int64, 0, len(counts))
	data := make([]opts.LineData, 0, len(counts))
	for _, c := range counts {
		frames = append(frames, c.Frame)
		data = append(data, opts.LineData{Value: c.Count})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Confirmed Targets", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Confirmed Targets per Frame", Subtitle: fmt.Sprintf("run=%s frames=%d", ws.detlog.RunID(), len(counts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "confirmed targets"}),
	)
	line.SetXAxis(frames).AddSeries("confirmed", data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(buf.Bytes())
}

// handleDistanceChart renders every recorded range estimate for the
// current run as an echarts scatter of frame vs distance, coloured by
// range.
func (ws *WebServer) handleDistanceChart(w http.ResponseWriter, r *http.Request) {
	if ws.detlog == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no detection log configured")
		return
	}
	points, err := ws.detlog.Distances()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query distances: %v", err))
		return
	}
	if len(points) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no range estimates recorded yet")
		return
	}

	data := make([]opts.ScatterData, 0, len(points))
	maxDist := 0.0
	for _, p := range points {
		if p.Distance > maxDist {
			maxDist = p.Distance
		}
		data = append(data, opts.ScatterData{
			Value: []interface{}{p.Frame, p.Distance, fmt.Sprintf("ID%d %s", p.TrackID, p.Class)},
		})
	}
	if maxDist == 0 {
		maxDist = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Range Estimates", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Range Estimates", Subtitle: fmt.Sprintf("run=%s points=%d", ws.detlog.RunID(), len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "distance (m)", Max: maxDist * 1.05}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDist),
			InRange:    &opts.VisualMapInRange{Color: []string{"#50a3ba", "#eac736", "#d94e5d"}},
		}),
	)
	scatter.AddSeries("range", data)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(buf.Bytes())
}
