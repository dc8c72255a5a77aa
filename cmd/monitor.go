package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/scrimmage/discord-tracker-service/internal/service"
)

const monitorHistory = 120

type statsHistory struct {
	ingests    []float64
	dispatches []float64
}

func newStatsHistory() *statsHistory {
	// Plots need two points before the first poll lands.
	return &statsHistory{ingests: []float64{0, 0}, dispatches: []float64{0, 0}}
}

func (h *statsHistory) push(s service.PipelineStats) {
	h.ingests = appendBounded(h.ingests, float64(s.ActiveIngests))
	h.dispatches = appendBounded(h.dispatches, float64(s.InFlightDispatches))
}

func appendBounded(series []float64, v float64) []float64 {
	series = append(series, v)
	if len(series) > monitorHistory {
		series = series[len(series)-monitorHistory:]
	}
	return series
}

func fetchStats(ctx context.Context, client *http.Client, addr string) (service.PipelineStats, error) {
	var stats service.PipelineStats
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(addr, "/")+"/debug/pipeline", nil)
	if err != nil {
		return stats, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("pipeline stats: unexpected status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	return stats, err
}

func runMonitor(ctx context.Context, addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: init terminal: %w", err)
	}
	defer ui.Close()

	status := widgets.NewParagraph()
	status.Title = " " + ServiceName + " "
	status.SetRect(0, 0, 80, 5)

	plot := widgets.NewPlot()
	plot.Title = " active ingests (green) / in-flight dispatches (yellow) "
	plot.LineColors = []ui.Color{ui.ColorGreen, ui.ColorYellow}
	plot.AxesColor = ui.ColorWhite
	plot.SetRect(0, 5, 80, 25)

	client := &http.Client{Timeout: interval}
	history := newStatsHistory()

	refresh := func() {
		stats, err := fetchStats(ctx, client, addr)
		if err != nil {
			status.Text = fmt.Sprintf("%s\n[unreachable: %v](fg:red)", addr, err)
		} else {
			history.push(stats)
			status.Text = fmt.Sprintf("%s\nactive ingests: %d   in-flight dispatches: %d\npress q to quit",
				addr, stats.ActiveIngests, stats.InFlightDispatches)
		}
		plot.Data = [][]float64{history.ingests, history.dispatches}
		ui.Render(status, plot)
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if e.ID == "q" || e.ID == "<C-c>" {
				return nil
			}
		case <-ticker.C:
			refresh()
		}
	}
}
