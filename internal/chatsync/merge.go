package chatsync

import (
	"sort"

	"github.com/tranvh/chatline/internal/api"
)

// MergeMode names the caller's intent. The algorithm is identical for
// pagination and live delivery, only the input sets differ; position falls
// out of the sort, never out of manual splicing.
type MergeMode int

const (
	// Replace discards the existing set, used for the initial page load.
	Replace MergeMode = iota
	// PrependOlder folds an older history page into the set.
	PrependOlder
	// AppendLive folds messages that arrived over the socket into the set.
	AppendLive
)

// Merge deduplicates existing and incoming by message id and returns the
// union ordered by CreatedAt descending, newest first. On an id collision
// the incoming copy wins, the last observation of a message is the truth.
// Ties on CreatedAt keep arrival order, existing before incoming. Messages
// without an id are dropped.
func Merge(existing, incoming []api.Message, mode MergeMode) []api.Message {
	if mode == Replace {
		existing = nil
	}
	index := make(map[string]int, len(existing)+len(incoming))
	out := make([]api.Message, 0, len(existing)+len(incoming))
	for _, set := range [2][]api.Message{existing, incoming} {
		for _, m := range set {
			if m.ID == "" {
				continue
			}
			if at, ok := index[m.ID]; ok {
				out[at] = m
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
