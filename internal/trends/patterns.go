package trends

import (
	"fmt"
	"sort"
	"time"
)

// ReelSignal is one observed short-form post with the attributes pattern
// mining cares about.
type ReelSignal struct {
	ReelID            string    `json:"reel_id"`
	Niche             string    `json:"niche"`
	HookStyle         string    `json:"hook_style"`
	DurationSeconds   float64   `json:"duration_seconds"`
	AudioTrendScore   float64   `json:"audio_trend_score"`
	VisualNoveltyScore float64  `json:"visual_novelty_score"`
	RetentionCurve    []float64 `json:"retention_curve"`
	Shares            int64     `json:"shares"`
	Saves             int64     `json:"saves"`
	Comments          int64     `json:"comments"`
	PostedAt          time.Time `json:"posted_at"`
}

// Insight is one mined pattern with its average virality proxy.
type Insight struct {
	Pattern   string  `json:"pattern"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// TopPatterns groups signals by hook style and duration bucket, scores each
// group by its mean virality proxy, and returns the strongest patterns.
func TopPatterns(signals []ReelSignal, limit int) []Insight {
	byHook := make(map[string][]float64)
	byDuration := make(map[string][]float64)

	for _, s := range signals {
		proxy := viralityProxy(s)
		byHook[s.HookStyle] = append(byHook[s.HookStyle], proxy)
		bucket := durationBucket(s.DurationSeconds)
		byDuration[bucket] = append(byDuration[bucket], proxy)
	}

	insights := make([]Insight, 0, len(byHook)+len(byDuration))
	for hook, values := range byHook {
		insights = append(insights, Insight{
			Pattern:   "hook:" + hook,
			Score:     mean(values),
			Rationale: fmt.Sprintf("average virality proxy for hook %q over %d reels", hook, len(values)),
		})
	}
	for bucket, values := range byDuration {
		insights = append(insights, Insight{
			Pattern:   "duration:" + bucket,
			Score:     mean(values),
			Rationale: fmt.Sprintf("average virality proxy for %s duration over %d reels", bucket, len(values)),
		})
	}

	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Score != insights[j].Score {
			return insights[i].Score > insights[j].Score
		}
		return insights[i].Pattern < insights[j].Pattern
	})

	if limit > 0 && len(insights) > limit {
		insights = insights[:limit]
	}
	return insights
}

// viralityProxy blends retention, engagement, novelty, and audio trend into
// a single comparable score.
func viralityProxy(s ReelSignal) float64 {
	retention := mean(s.RetentionCurve)
	engagement := float64(s.Shares*3 + s.Saves*3 + s.Comments*2)
	return retention*100 + engagement + s.VisualNoveltyScore*100 + s.AudioTrendScore*100
}

func durationBucket(seconds float64) string {
	switch {
	case seconds < 10:
		return "0-9s"
	case seconds < 20:
		return "10-19s"
	case seconds < 35:
		return "20-34s"
	default:
		return "35s+"
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
