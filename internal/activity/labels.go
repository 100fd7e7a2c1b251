package activity

import "strings"

// Labels shown to the dashboard. The UI keys state off these exact strings.
const (
	LabelIdle       = "Idle"
	LabelNoActivity = "No recent activity"
	LabelCleanup    = "Cleanup pass in progress"
)

// progressMarkers maps a known in-progress phrase to its display label.
var progressMarkers = []struct {
	phrase string
	label  string
}{
	{"procedure e", LabelCleanup},
}

// View is the display form of an agent's activity.
type View struct {
	CurrentActivity       string
	LastCompletedActivity string
	IsComplete            bool
}

// ComputeView derives the labels. Precedence: complete > known marker >
// raw text > placeholder.
func ComputeView(entry, lastCompleted *Entry) View {
	raw := ""
	if entry != nil {
		raw = entry.Message
	}
	complete := isComplete(raw)

	v := View{IsComplete: complete}
	v.CurrentActivity = CurrentLabel(raw)
	switch {
	case lastCompleted != nil && lastCompleted.Message != "":
		v.LastCompletedActivity = lastCompleted.Message
	case complete:
		v.LastCompletedActivity = raw
	}
	return v
}

// CurrentLabel maps a raw activity message to the current-activity label.
func CurrentLabel(raw string) string {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, completeMarker) {
		return LabelIdle
	}
	for _, m := range progressMarkers {
		if strings.Contains(lower, m.phrase) {
			return m.label
		}
	}
	if raw == "" {
		return LabelNoActivity
	}
	return raw
}
