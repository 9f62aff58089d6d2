package ws

import (
	"fmt"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
)

const (
	kindIssues   = "issues"
	kindComments = "comments"
)

// handleSubscribeIssues joins the single issues room and replays the cached
// issue snapshot. Issue traffic spans all namespaces, so it is restricted to
// administrators.
func (c *Client) handleSubscribeIssues() {
	user := c.sessionUser(kindIssues)
	if user == nil {
		return
	}
	st := &c.families[familyIssues]
	st.mu.Lock()
	generation := c.nextGeneration(familyIssues)
	c.leaveIssuesRooms()
	st.mu.Unlock()

	isAdmin, err := c.hub.services.Admins.IsAdmin(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("admin check failed", "client", c.id, "user", user.Id, "error", err)
		c.emitError(familyIssues, generation, kindIssues, 500, "Failed to fetch issues")
		return
	}
	if !isAdmin {
		globals.AppLogger.Warn("user not allowed to subscribe to issues", "client", c.id, "user", user.Id)
		c.emitError(familyIssues, generation, kindIssues, 403, "Forbidden")
		return
	}
	if !c.joinRoomIfCurrent(familyIssues, generation, IssuesRoom) {
		return
	}

	issues, err := c.hub.services.Journal.GetIssues()
	if err != nil {
		globals.AppLogger.Error("failed to fetch issues", "client", c.id, "error", err)
		c.emitError(familyIssues, generation, kindIssues, 500, "Failed to fetch issues")
		return
	}
	emitter := newEventsEmitter(c, familyIssues, generation, kindIssues)
	emitter.BatchEmitObjectsAndFlush(issuesToItems(issues))
}

// handleSubscribeComments joins the comment room of one resource and replays
// the comments of each of its open issues. Issues are fetched one after the
// other; a failing issue reports an error and does not stop the rest.
func (c *Client) handleSubscribeComments(req types.SubscribeCommentsRequest) {
	user := c.sessionUser(kindComments)
	if user == nil {
		return
	}
	st := &c.families[familyComments]
	st.mu.Lock()
	generation := c.nextGeneration(familyComments)
	c.leaveCommentsRooms()
	st.mu.Unlock()

	isAdmin, err := c.hub.services.Admins.IsAdmin(c.ctx, user)
	if err != nil {
		globals.AppLogger.Error("admin check failed", "client", c.id, "user", user.Id, "error", err)
		c.emitError(familyComments, generation, kindComments, 500, "Failed to fetch comments")
		return
	}
	if !isAdmin {
		globals.AppLogger.Warn("user not allowed to subscribe to comments", "client", c.id, "user", user.Id)
		c.emitError(familyComments, generation, kindComments, 403, "Forbidden")
		return
	}
	if !c.joinRoomIfCurrent(familyComments, generation, CommentsRoom(req.Namespace, req.Name)) {
		return
	}

	numbers, err := c.hub.services.Journal.GetIssueNumbersForNameAndNamespace(req.Name, req.Namespace)
	if err != nil {
		globals.AppLogger.Error("failed to fetch issue numbers", "client", c.id, "namespace", req.Namespace, "name", req.Name, "error", err)
		c.emitError(familyComments, generation, kindComments, 500, "Failed to fetch comments")
		return
	}
	emitter := newEventsEmitter(c, familyComments, generation, kindComments)
	for _, number := range numbers {
		it := c.hub.services.Comments.GetIssueComments(number)
		for {
			page, err := it.Next(c.ctx)
			if err != nil {
				globals.AppLogger.Error("failed to fetch comments", "client", c.id, "issue", number, "error", err)
				c.emitError(familyComments, generation, kindComments, 500, fmt.Sprintf("Failed to fetch comments for issue %d", number))
				break
			}
			if page == nil {
				break
			}
			emitter.BatchEmitObjects(commentsToItems(page))
		}
	}
	emitter.Flush()
}

// handleUnsubscribeComments leaves the comment rooms without emitting
// anything. Advancing the generation cancels any in-flight comment replay.
func (c *Client) handleUnsubscribeComments() {
	st := &c.families[familyComments]
	st.mu.Lock()
	c.nextGeneration(familyComments)
	c.leaveCommentsRooms()
	st.mu.Unlock()
}

func issuesToItems(issues []types.Issue) []interface{} {
	items := make([]interface{}, 0, len(issues))
	for _, issue := range issues {
		items = append(items, issue)
	}
	return items
}

func commentsToItems(comments []types.Comment) []interface{} {
	items := make([]interface{}, 0, len(comments))
	for _, comment := range comments {
		items = append(items, comment)
	}
	return items
}
