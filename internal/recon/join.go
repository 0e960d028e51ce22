package recon

import "github.com/ngxthien/riskrecon/internal/store"

// JoinResult summarizes a label join.
type JoinResult struct {
	Posts       []store.Post `json:"-"`
	Labeled     int          `json:"labeled"`
	Unlabeled   int          `json:"unlabeled"`
	LabelRows   int          `json:"label_rows"`
	// MaxOffset is the largest zero-based offset any significant label
	// row referred to. When it is >= len(Posts) the label file was
	// produced against a longer table and the join is suspect; row-order
	// stability between the two files remains the caller's
	// responsibility and is not otherwise verified.
	MaxOffset int `json:"max_offset"`
}

// ApplyLabels joins the label table onto the post sequence by positional
// offset: a label row with final_label == 1 and index_get = k marks the
// post at zero-based offset k-1. Every other post gets label 0. Single
// O(n) pass; no content-based matching. The input slice is returned with
// labels populated; the label rows are not mutated.
func ApplyLabels(labels []store.LabelRow, posts []store.Post) JoinResult {
	marked := make(map[int]bool, len(labels))
	maxOffset := -1
	for _, row := range labels {
		if row.FinalLabel != 1 {
			continue
		}
		offset := row.IndexGet - 1
		if offset < 0 {
			continue
		}
		marked[offset] = true
		if offset > maxOffset {
			maxOffset = offset
		}
	}

	res := JoinResult{Posts: posts, LabelRows: len(labels), MaxOffset: maxOffset}
	for i := range posts {
		if marked[i] {
			posts[i].Label = 1
			res.Labeled++
		} else {
			posts[i].Label = 0
			res.Unlabeled++
		}
	}
	return res
}
