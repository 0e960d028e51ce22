package recon

import (
	"strings"
	"time"

	"github.com/ngxthien/riskrecon/internal/store"
)

// FlatPost is one normalized row of the matched-history export.
type FlatPost struct {
	Username  string `json:"username"`
	PostText  string `json:"post_text"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	CrawlDate string `json:"crawl_date"`
}

// MatchResult partitions a requested identifier set against the history
// store and carries the flattened rows of every match.
type MatchResult struct {
	Found     map[string]store.HistoryRecord `json:"-"`
	FoundIDs  []string                       `json:"found_usernames"`
	NotFound  []string                       `json:"not_found"`
	Flattened []FlatPost                     `json:"-"`
}

// NormalizeIdentifiers trims each requested identifier, strips a leading
// "@", and drops empties and duplicates, preserving first-seen order.
func NormalizeIdentifiers(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, id := range requested {
		id = strings.TrimSpace(id)
		id = strings.TrimPrefix(id, "@")
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MatchHistories resolves the requested identifiers against the history
// mapping. Matching is exact string equality after normalization — no
// fuzzy or case-insensitive comparison. An empty request set and an
// empty store are explicit outcome variants, not failures; running twice
// over unchanged inputs yields identical partitions.
func MatchHistories(requested []string, history store.History) (MatchResult, Outcome) {
	ids := NormalizeIdentifiers(requested)
	if len(ids) == 0 {
		return MatchResult{}, Warning("no usernames provided")
	}
	if len(history) == 0 {
		return MatchResult{}, Warning("history store is empty or missing; run a crawl first")
	}

	res := MatchResult{Found: make(map[string]store.HistoryRecord)}
	now := time.Now().Format("2006-01-02 15:04:05")
	for _, id := range ids {
		rec, ok := history[id]
		if !ok {
			res.NotFound = append(res.NotFound, id)
			continue
		}
		res.Found[id] = rec
		res.FoundIDs = append(res.FoundIDs, id)
		res.Flattened = append(res.Flattened, FlattenRecord(rec, now)...)
	}

	if len(res.Found) == 0 {
		return res, Warning("none of the %d requested users were found in the history store", len(ids))
	}
	return res, Successf(nil, "matched %d users, %d not found, %d posts flattened",
		len(res.Found), len(res.NotFound), len(res.Flattened))
}

// FlattenRecord turns one history record into normalized rows, dropping
// posts whose text trims to empty.
func FlattenRecord(rec store.HistoryRecord, crawlDate string) []FlatPost {
	if crawlDate == "" {
		crawlDate = time.Now().Format("2006-01-02 15:04:05")
	}
	var rows []FlatPost
	for _, p := range rec.Posts {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		rows = append(rows, FlatPost{
			Username:  rec.Identifier,
			PostText:  text,
			Timestamp: p.Timestamp,
			URL:       p.URL,
			CrawlDate: crawlDate,
		})
	}
	return rows
}
