// Package notifications provides the realtime change feed: Redis fan-out across
// instances and a WebSocket hub with per-table subscriptions.
package notifications

import (
	"fmt"
	"strings"
)

// Actions carried by a ChangeEvent.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event type constants prevent typos in event names.
const (
	EventMediaCreated        = "media_created"
	EventMediaUpdated        = "media_updated"
	EventMediaLiked          = "media_liked"
	EventMediaDeleted        = "media_deleted"
	EventCommentCreated      = "comment_created"
	EventCommentDeleted      = "comment_deleted"
	EventProfileUpdated      = "profile_updated"
	EventProfileDeleted      = "profile_deleted"
	EventGenerationProgress  = "generation_progress"
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
)

const (
	tableChannelPrefix = "realtime:table:"
	userChannelPrefix  = "notifications:user:"
)

// ChangeEvent describes one row mutation. Record holds the row after the
// change (or the deleted row's identifying fields for deletes).
type ChangeEvent struct {
	Type     string `json:"type"`
	Table    string `json:"table"`
	Action   string `json:"action"`
	RecordID uint   `json:"record_id"`
	UserID   uint   `json:"user_id"`
	Record   any    `json:"record,omitempty"`
}

// Filter narrows a table subscription. Zero values match everything.
type Filter struct {
	UserID uint `json:"user_id,omitempty"`
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev ChangeEvent) bool {
	return f.UserID == 0 || f.UserID == ev.UserID
}

// TableChannel is the Redis channel carrying changes of table.
func TableChannel(table string) string {
	return tableChannelPrefix + table
}

// UserChannel is the Redis channel carrying events for one user.
func UserChannel(userID uint) string {
	return fmt.Sprintf(userChannelPrefix+"%d", userID)
}

func parseUserChannel(channel string) (uint, bool) {
	if !strings.HasPrefix(channel, userChannelPrefix) {
		return 0, false
	}
	var userID uint
	if _, err := fmt.Sscanf(channel, userChannelPrefix+"%d", &userID); err != nil || userID == 0 {
		return 0, false
	}
	return userID, true
}
