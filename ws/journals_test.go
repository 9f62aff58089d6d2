package ws

import (
	"fmt"
	"testing"
	"time"

	"github.com/gardenhub/shoot-events/types"
	"github.com/stretchr/testify/assert"
)

func testIssue(number int, namespace, name string) types.Issue {
	return types.Issue{
		Number:    number,
		Namespace: namespace,
		Name:      name,
		Title:     "issue",
		State:     "open",
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testComment(id, number int) types.Comment {
	return types.Comment{
		Id:        id,
		Number:    number,
		Author:    "gardener",
		Body:      "body",
		CreatedAt: time.Date(2024, 5, 1, 12, id, 0, 0, time.UTC),
	}
}

func journalServices(admin bool) Services {
	return Services{
		Projects: &fakeProjects{projects: projectsFor("garden-core")},
		Admins:   &fakeAdmins{admin: admin},
		Journal: &fakeJournal{
			issues: []types.Issue{
				testIssue(1, "garden-core", "crown"),
				testIssue(2, "garden-core", "crown"),
			},
			numbers: map[string][]int{"garden-core/crown": {1, 2}},
		},
		Comments: &fakeComments{
			pages: map[int][][]types.Comment{
				1: {{testComment(1, 1), testComment(2, 1)}, {testComment(3, 1)}},
				2: {{testComment(4, 2)}},
			},
		},
	}
}

func TestSubscribeIssues(t *testing.T) {
	hub := newTestHub(NamespaceJournals, journalServices(true))
	c := newTestClient(hub)

	c.handleSubscribeIssues()

	assert.ElementsMatch(t, []string{IssuesRoom}, roomNames(c))

	message := receive(t, c)
	assert.Equal(t, "issues", message.Event)
	payload := types.ObjectsPayload{}
	decodeInto(t, message, &payload)
	assert.Equal(t, "issues", payload.Kind)
	assert.Len(t, payload.Items, 2)
	assertNoMessage(t, c)
}

func TestSubscribeIssuesForbidden(t *testing.T) {
	hub := newTestHub(NamespaceJournals, journalServices(false))
	c := newTestClient(hub)

	c.handleSubscribeIssues()

	message := receive(t, c)
	assert.Equal(t, types.EventSubscriptionError, message.Event)
	subErr := types.SubscriptionError{}
	decodeInto(t, message, &subErr)
	assert.Equal(t, 403, subErr.Code)
	assert.Equal(t, "Forbidden", subErr.Message)
	assert.Empty(t, roomNames(c))
	assertNoMessage(t, c)
}

func TestSubscribeIssuesCacheFailure(t *testing.T) {
	services := journalServices(true)
	services.Journal.(*fakeJournal).issuesErr = fmt.Errorf("boom")
	hub := newTestHub(NamespaceJournals, services)
	c := newTestClient(hub)

	c.handleSubscribeIssues()

	message := receive(t, c)
	assert.Equal(t, types.EventSubscriptionError, message.Event)
	subErr := types.SubscriptionError{}
	decodeInto(t, message, &subErr)
	assert.Equal(t, 500, subErr.Code)
}

func TestSubscribeComments(t *testing.T) {
	hub := newTestHub(NamespaceJournals, journalServices(true))
	c := newTestClient(hub)

	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "crown", Namespace: "garden-core"})

	assert.ElementsMatch(t, []string{"comments_garden-core/crown"}, roomNames(c))

	message := receive(t, c)
	assert.Equal(t, "comments", message.Event)
	payload := types.ObjectsPayload{}
	decodeInto(t, message, &payload)
	assert.Len(t, payload.Items, 4) // all pages of both issues, one flush
	assertNoMessage(t, c)
}

func TestSubscribeCommentsForbidden(t *testing.T) {
	hub := newTestHub(NamespaceJournals, journalServices(false))
	c := newTestClient(hub)

	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "crown", Namespace: "garden-core"})

	message := receive(t, c)
	assert.Equal(t, types.EventSubscriptionError, message.Event)
	subErr := types.SubscriptionError{}
	decodeInto(t, message, &subErr)
	assert.Equal(t, 403, subErr.Code)
	assert.Empty(t, roomNames(c))
}

func TestSubscribeCommentsIssueFailureIsIsolated(t *testing.T) {
	services := journalServices(true)
	services.Comments.(*fakeComments).failing = map[int]error{1: fmt.Errorf("boom")}
	hub := newTestHub(NamespaceJournals, services)
	c := newTestClient(hub)

	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "crown", Namespace: "garden-core"})

	message := receive(t, c)
	assert.Equal(t, types.EventSubscriptionError, message.Event)
	subErr := types.SubscriptionError{}
	decodeInto(t, message, &subErr)
	assert.Equal(t, 500, subErr.Code)
	assert.Equal(t, "Failed to fetch comments for issue 1", subErr.Message)

	// issue 2 still delivers
	message = receive(t, c)
	assert.Equal(t, "comments", message.Event)
	payload := types.ObjectsPayload{}
	decodeInto(t, message, &payload)
	assert.Len(t, payload.Items, 1)
}

func TestUnsubscribeComments(t *testing.T) {
	hub := newTestHub(NamespaceJournals, journalServices(true))
	c := newTestClient(hub)

	c.handleSubscribeIssues()
	_ = receiveAll(t, c)
	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "crown", Namespace: "garden-core"})
	_ = receiveAll(t, c)
	assert.ElementsMatch(t, []string{IssuesRoom, "comments_garden-core/crown"}, roomNames(c))

	c.handleUnsubscribeComments()

	// the issues room membership survives, nothing is emitted
	assert.ElementsMatch(t, []string{IssuesRoom}, roomNames(c))
	assertNoMessage(t, c)
}

func TestResubscribeCommentsReplacesRoom(t *testing.T) {
	services := journalServices(true)
	services.Journal.(*fakeJournal).numbers["garden-core/other"] = []int{}
	hub := newTestHub(NamespaceJournals, services)
	c := newTestClient(hub)

	c.handleSubscribeIssues()
	_ = receiveAll(t, c)
	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "crown", Namespace: "garden-core"})
	_ = receiveAll(t, c)
	c.handleSubscribeComments(types.SubscribeCommentsRequest{Name: "other", Namespace: "garden-core"})
	_ = receiveAll(t, c)

	assert.ElementsMatch(t, []string{IssuesRoom, "comments_garden-core/other"}, roomNames(c))
}
