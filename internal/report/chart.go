package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders the fabric requirements as a standalone html bar chart.
func WriteChart(w io.Writer, s Summary) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Fabric needed (sq in)",
			Subtitle: fmt.Sprintf("%d x %d blocks of %v\"", s.BlocksAcross, s.BlocksDown, s.BlockSize),
		}),
	)
	bar.SetXAxis([]string{"Fabric A", "Fabric B", "Backing", "Binding"}).
		AddSeries("fabric", []opts.BarData{
			{Name: "Fabric A", Value: s.FabricA},
			{Name: "Fabric B", Value: s.FabricB},
			{Name: "Backing", Value: s.Backing},
			{Name: "Binding", Value: s.Binding},
		})

	patches := make([]opts.BarData, 0, len(s.Patches))
	names := make([]string, 0, len(s.Patches))
	for _, p := range s.Patches {
		names = append(names, p.Kind)
		patches = append(patches, opts.BarData{Name: p.Kind, Value: p.Count})
	}
	counts := charts.NewBar()
	counts.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Patches"}))
	counts.SetXAxis(names).AddSeries("patches", patches)

	page := components.NewPage()
	page.AddCharts(bar, counts)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
