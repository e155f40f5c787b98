// Command report renders an HTML analytics report for one venue: pulse
// over time, sweet-spot buckets, and a window-over-window comparison.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"

	"github.com/pulse-data/venue.report/internal/db"
	"github.com/pulse-data/venue.report/internal/pulse"
	"github.com/pulse-data/venue.report/internal/security"
)

func main() {
	var dbPath string
	var venueID int64
	var days int
	var outDir string

	flag.StringVar(&dbPath, "db", "venue_data.db", "path to sqlite db")
	flag.Int64Var(&venueID, "venue", 0, "venue id to report on")
	flag.IntVar(&days, "days", 7, "report window in days")
	flag.StringVar(&outDir, "out", ".", "output directory for the rendered report")
	flag.Parse()

	if venueID == 0 {
		log.Fatal("a -venue id is required")
	}
	if days < 1 {
		log.Fatal("-days must be at least 1")
	}

	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	venue, err := database.GetVenue(venueID)
	if err != nil {
		log.Fatalf("load venue: %v", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	prevStart := start.AddDate(0, 0, -days)

	current, err := database.SnapshotsBetween(venue.ID, start, end)
	if err != nil {
		log.Fatalf("load current window: %v", err)
	}
	previous, err := database.SnapshotsBetween(venue.ID, prevStart, start)
	if err != nil {
		log.Fatalf("load previous window: %v", err)
	}
	hourly, err := database.HourlyAverages(venue.ID, start, end)
	if err != nil {
		log.Fatalf("load hourly averages: %v", err)
	}

	calc := pulse.NewCalculator(pulse.DefaultTargets())
	comparison := calc.ComparePeriods(current, previous)
	sweetSound := calc.AnalyzeSweetSpot(current, pulse.VariableSound, venue.Capacity)
	sweetLight := calc.AnalyzeSweetSpot(current, pulse.VariableLight, venue.Capacity)

	fmt.Printf("Report for %s: %d snapshots over %d days\n", venue.Name, len(current), days)
	fmt.Printf("  avg pulse %.1f (trend %s), visitors %d\n",
		comparison.Current.AvgPulseScore, comparison.Trend, comparison.Current.TotalVisitors)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s venue report", venue.Name)
	page.AddCharts(
		pulseLineChart(venue.Name, hourly),
		sweetSpotBarChart("Sound sweet spot", sweetSound),
		sweetSpotBarChart("Light sweet spot", sweetLight),
		comparisonBarChart(comparison),
	)

	runID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s-report-%s.html",
		security.SanitizeFilename(venue.Name), start.Format("2006-01-02"), runID[:8])
	outPath := filepath.Join(outDir, filename)
	if err := security.ValidatePathWithinDirectory(outPath, outDir); err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create report file: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}

	record := &db.VenueReport{
		VenueID:   venue.ID,
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
		Filepath:  outDir,
		Filename:  filename,
		RunID:     runID,
	}
	if err := database.CreateVenueReport(record); err != nil {
		log.Fatalf("record report: %v", err)
	}

	fmt.Printf("Wrote %s (run %s)\n", outPath, runID)
}

func pulseLineChart(venueName string, hourly []db.HourlyPulse) *charts.Line {
	xAxis := make([]string, 0, len(hourly))
	scores := make([]opts.LineData, 0, len(hourly))
	for _, h := range hourly {
		xAxis = append(xAxis, h.HourStart.Format("Mon 15:04"))
		scores = append(scores, opts.LineData{Value: h.AvgScore})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Hourly pulse", Subtitle: venueName}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100, Name: "score"}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("pulse", scores, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

func sweetSpotBarChart(title string, result pulse.SweetSpotResult) *charts.Bar {
	xAxis := make([]string, 0, len(result.Buckets))
	stays := make([]opts.BarData, 0, len(result.Buckets))
	for _, b := range result.Buckets {
		xAxis = append(xAxis, b.Range)
		item := opts.BarData{Value: b.AvgStayMinutes}
		if b.IsOptimal {
			item.ItemStyle = &opts.ItemStyle{Color: "#35b779"}
		}
		stays = append(stays, item)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("optimal %s, hit %.0f%% of %d samples", result.OptimalRange, result.HitPercentage, result.TotalSamples),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "est. stay (min)"}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("avg stay", stays)
	return bar
}

func comparisonBarChart(cmp pulse.PeriodComparison) *charts.Bar {
	xAxis := []string{"pulse score", "visitors", "dwell (min)", "optimal time %"}
	currentData := []opts.BarData{
		{Value: cmp.PulseScore.Current},
		{Value: cmp.Visitors.Current},
		{Value: cmp.DwellTime.Current},
		{Value: cmp.OptimalTime.Current},
	}
	previousData := []opts.BarData{
		{Value: cmp.PulseScore.Previous},
		{Value: cmp.Visitors.Previous},
		{Value: cmp.DwellTime.Previous},
		{Value: cmp.OptimalTime.Previous},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Window comparison",
			Subtitle: fmt.Sprintf("trend: %s", cmp.Trend),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("current", currentData)
	bar.AddSeries("previous", previousData)
	return bar
}
