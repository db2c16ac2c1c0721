package grouping

import (
	"time"

	"github.com/tranvh/chatline/internal/api"
)

// DefaultThreshold is the time gap that splits two same-sender messages
// into separate visual groups.
const DefaultThreshold = 15 * time.Minute

// Hint is derived rendering metadata for one message in a newest-first
// timeline. Never persisted, recomputed from the message list on every
// timeline mutation.
type Hint struct {
	// IsFirstInGroup marks the chronologically first message of a run.
	IsFirstInGroup bool
	// IsLastInGroup marks the chronologically last message of a run.
	IsLastInGroup bool
	// IsGroupTail marks the middle message of the run, where the bubble
	// pointer is drawn.
	IsGroupTail bool
	// ShowDivider marks a time divider rendered before this message.
	ShowDivider bool
	// ShowAvatar anchors one avatar per incoming run, at IsLastInGroup.
	ShowAvatar bool
}

// Compute derives group hints with the default threshold. messages must be
// ordered newest first; currentUserID distinguishes outgoing from incoming.
func Compute(messages []api.Message, currentUserID string) []Hint {
	return ComputeWithThreshold(messages, currentUserID, DefaultThreshold)
}

// ComputeWithThreshold is Compute with an explicit gap threshold. Pure
// function, no state.
func ComputeWithThreshold(messages []api.Message, currentUserID string, threshold time.Duration) []Hint {
	n := len(messages)
	hints := make([]Hint, n)
	if n == 0 {
		return hints
	}

	// sameRun reports whether index i and the next-older index i+1 belong
	// to one visual group.
	sameRun := func(i int) bool {
		if messages[i].SenderID != messages[i+1].SenderID {
			return false
		}
		return gap(messages[i], messages[i+1]) < threshold
	}

	for i := 0; i < n; i++ {
		hints[i].IsFirstInGroup = i == n-1 || !sameRun(i)
		hints[i].IsLastInGroup = i == 0 || !sameRun(i-1)
		hints[i].ShowDivider = i == n-1 || gap(messages[i], messages[i+1]) >= threshold
	}

	// Walk the runs to place the tail at the middle index and the avatar
	// at the last incoming message of each run.
	for start := 0; start < n; {
		end := start
		for end+1 < n && sameRun(end) {
			end++
		}
		hints[start+(end-start+1)/2].IsGroupTail = true
		for i := start; i <= end; i++ {
			if messages[i].SenderID != currentUserID {
				hints[i].ShowAvatar = hints[i].IsLastInGroup
			}
		}
		start = end + 1
	}
	return hints
}

func gap(a, b api.Message) time.Duration {
	d := a.CreatedAt.Sub(b.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d
}
