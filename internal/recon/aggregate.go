package recon

import (
	"math"
	"strings"

	"github.com/ngxthien/riskrecon/internal/store"
)

// UserAggregate is the synthesized per-user view: canonical posts,
// matched detailed history, and the derived risk annotation. Computed
// fresh on each request; never persisted.
type UserAggregate struct {
	Username      string         `json:"username"`
	SuicideRisk   int            `json:"suicide_risk"`
	RiskScore     float64        `json:"risk_score"`
	MainPosts     []store.Post   `json:"main_posts"`
	DetailedPosts []FlatPost     `json:"detailed_posts"`
	Stats         AggregateStats `json:"stats"`
}

type AggregateStats struct {
	TotalMainPosts     int `json:"total_main_posts"`
	HighRiskPosts      int `json:"high_risk_posts"`
	TotalDetailedPosts int `json:"total_detailed_posts"`
}

// AggregateUsers combines the reference post table (the filtered subset
// when one exists, else the canonical table — the caller picks) with the
// history mapping. Pure function of its inputs: no I/O, no export write.
// One aggregate per distinct non-empty username, in first-seen order.
func AggregateUsers(reference *store.Table, history store.History) []UserAggregate {
	byUser := make(map[string][]store.Post)
	var order []string
	for _, p := range reference.Posts {
		u := strings.TrimSpace(p.Username)
		if u == "" {
			continue
		}
		if _, seen := byUser[u]; !seen {
			order = append(order, u)
		}
		byUser[u] = append(byUser[u], p)
	}

	aggregates := make([]UserAggregate, 0, len(order))
	for _, u := range order {
		main := byUser[u]
		highRisk := 0
		for _, p := range main {
			if p.Label == 1 {
				highRisk++
			}
		}

		agg := UserAggregate{
			Username:      u,
			MainPosts:     main,
			DetailedPosts: []FlatPost{},
			Stats: AggregateStats{
				TotalMainPosts: len(main),
				HighRiskPosts:  highRisk,
			},
		}
		if highRisk > 0 {
			agg.SuicideRisk = 1
		}
		if len(main) > 0 {
			agg.RiskScore = round2(float64(highRisk) / float64(len(main)))
		}
		if rec, ok := history[u]; ok {
			agg.DetailedPosts = FlattenRecord(rec, "")
			if agg.DetailedPosts == nil {
				agg.DetailedPosts = []FlatPost{}
			}
		}
		agg.Stats.TotalDetailedPosts = len(agg.DetailedPosts)
		aggregates = append(aggregates, agg)
	}
	return aggregates
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
