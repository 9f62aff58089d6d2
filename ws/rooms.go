package ws

import (
	"fmt"
	"strings"
)

// Room name derivation. Room names are a protocol contract shared with the
// dashboard frontend.

const (
	// IssuesRoom is the single room carrying issue events.
	IssuesRoom = "issues"

	commentsRoomPrefix = "comments_"
)

// ShootsRoom is the fleet room of one namespace, optionally qualified by a
// named fleet filter.
func ShootsRoom(namespace, filterName string) string {
	if filterName != "" {
		return fmt.Sprintf("shoots_%s_%s", namespace, filterName)
	}
	return fmt.Sprintf("shoots_%s", namespace)
}

// ShootRoom is the room of one single resource.
func ShootRoom(namespace, name string) string {
	return fmt.Sprintf("shoot_%s_%s", namespace, name)
}

// CommentsRoom is the room carrying comment events of one resource.
func CommentsRoom(namespace, name string) string {
	return fmt.Sprintf("%s%s/%s", commentsRoomPrefix, namespace, name)
}

// Canned leave predicates. Each encodes which room families are mutually
// exclusive with the subscription about to be established: an issues
// subscription must not evict an active comment room and vice versa.

// leaveShootRooms removes every room before a fleet or single-resource
// (re-)subscription.
func (c *Client) leaveShootRooms() {
	c.hub.LeaveRooms(c, func(room string) bool { return true })
}

// leaveIssuesRooms removes every room except comment rooms.
func (c *Client) leaveIssuesRooms() {
	c.hub.LeaveRooms(c, func(room string) bool { return !strings.HasPrefix(room, commentsRoomPrefix) })
}

// leaveCommentsRooms removes every room except the issues room.
func (c *Client) leaveCommentsRooms() {
	c.hub.LeaveRooms(c, func(room string) bool { return room != IssuesRoom })
}
