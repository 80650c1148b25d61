// Package analytics reduces a user's stored focus points into the summary the
// dashboard shows.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hperssn/focusflow/internal/domain"
)

const (
	DefaultDays = 7
	dateLayout  = "2006-01-02"
)

type DailyPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

type Summary struct {
	AverageScore    float64      `json:"averageScore"`
	TotalDataPoints int          `json:"totalDataPoints"`
	BestHour        *int         `json:"bestHour"`
	DailyData       []DailyPoint `json:"dailyData"`
}

// Window returns the inclusive start of a days-long window ending at now.
func Window(now time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultDays
	}
	return now.AddDate(0, 0, -days)
}

// Reduce summarises the points that fall inside the window. DailyData keeps
// one entry per point in chronological order; hours and dates are taken in
// loc.
func Reduce(points []domain.Point, now time.Time, days int, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	since := Window(now, days)

	inWindow := make([]domain.Point, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(since) {
			inWindow = append(inWindow, p)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Timestamp.Before(inWindow[j].Timestamp)
	})

	summary := Summary{
		TotalDataPoints: len(inWindow),
		DailyData:       make([]DailyPoint, 0, len(inWindow)),
	}
	if len(inWindow) == 0 {
		return summary
	}

	var (
		total    float64
		hourSum  [24]float64
		hourSeen [24]int
	)
	for _, p := range inWindow {
		total += p.FocusScore
		h := p.Timestamp.In(loc).Hour()
		hourSum[h] += p.FocusScore
		hourSeen[h]++
		summary.DailyData = append(summary.DailyData, DailyPoint{
			Date:  p.Timestamp.In(loc).Format(dateLayout),
			Score: p.FocusScore,
		})
	}
	summary.AverageScore = total / float64(len(inWindow))

	best, bestAvg := -1, math.Inf(-1)
	for h := 0; h < 24; h++ {
		if hourSeen[h] == 0 {
			continue
		}
		if avg := hourSum[h] / float64(hourSeen[h]); avg > bestAvg {
			best, bestAvg = h, avg
		}
	}
	summary.BestHour = &best

	return summary
}

// DailyAverages collapses a DailyData list into one averaged entry per date,
// keeping date order.
func DailyAverages(daily []DailyPoint) []DailyPoint {
	out := make([]DailyPoint, 0)
	counts := make([]int, 0)
	index := make(map[string]int)

	for _, d := range daily {
		i, ok := index[d.Date]
		if !ok {
			i = len(out)
			index[d.Date] = i
			out = append(out, DailyPoint{Date: d.Date})
			counts = append(counts, 0)
		}
		out[i].Score += d.Score
		counts[i]++
	}
	for i := range out {
		out[i].Score /= float64(counts[i])
	}

	return out
}
