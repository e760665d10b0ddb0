package sync

import (
	"fmt"
	"strings"
	"time"
)

// StatusDetail is the human-readable diagnostic block written onto a billing
// record when a sync attempt fails. The framing matches what the upstream
// document pipeline writes, so end users read one consistent format.
type StatusDetail struct {
	LoggedAt time.Time
	FileLink string
	Issue    string
	Detail   string
	Actions  []string
}

func (d StatusDetail) String() string {
	ts := d.LoggedAt.Format("2006-01-02 15:04:05")

	var actions string
	if len(d.Actions) > 0 {
		lines := make([]string, len(d.Actions))
		for i, a := range d.Actions {
			lines[i] = fmt.Sprintf("%d. %s", i+1, a)
		}
		actions = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(
		"----------- START: Logged at %s -----------\n\n"+
			"Process: Records to QuickBooks\n\n"+
			"File: %s\n\n"+
			"Issue: %s\n\n"+
			"Details:\n%s\n\n"+
			"Actions:\n%s\n\n"+
			"----------- END: Logged at %s -----------",
		ts, d.FileLink, d.Issue, d.Detail, actions, ts)
}
