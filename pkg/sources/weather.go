package sources

import (
	"context"
	"time"

	"github.com/HatiCode/trendlens/pkg/series"
)

// WeatherStation is a placeholder for station feeds. It reports no trends.
type WeatherStation struct {
	StationID string
}

func (w *WeatherStation) Header() string                              { return "weather:" + w.StationID }
func (w *WeatherStation) ShortName() string                           { return w.StationID }
func (w *WeatherStation) Kind(context.Context) Kind                   { return KindTimeSeries }
func (w *WeatherStation) Trends(context.Context) []string             { return []string{} }
func (w *WeatherStation) RawSeries(context.Context, string) []float64 { return []float64{} }

func (w *WeatherStation) TimestampSeries(_ context.Context, trend string) *series.TimestampSeries {
	return series.Empty(trend)
}

func (w *WeatherStation) Window(ctx context.Context, trends []string, start, end time.Time) []*series.TimestampSeries {
	return window(ctx, trends, start, end, w.TimestampSeries)
}
