package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gardenhub/shoot-events/filter"
	"github.com/gardenhub/shoot-events/types"
)

// Fake collaborators shared by the handler tests.

type fakeShootService struct {
	shoots  map[string][]types.Shoot // namespace -> shoots
	failing map[string]error         // namespace -> list error ("" for the unscoped call)
	readErr error
}

func (f *fakeShootService) List(ctx context.Context, user *types.User, namespace string, flt *filter.Filter) ([]types.Shoot, error) {
	if err, ok := f.failing[namespace]; ok {
		return nil, err
	}
	result := make([]types.Shoot, 0)
	appendShoots(&result, f.shoots, namespace, flt)
	return result, nil
}

func appendShoots(result *[]types.Shoot, all map[string][]types.Shoot, namespace string, flt *filter.Filter) {
	for ns, shoots := range all {
		if namespace != "" && ns != namespace {
			continue
		}
		for _, shoot := range shoots {
			if flt != nil && !flt.Match(shoot) {
				continue
			}
			*result = append(*result, shoot)
		}
	}
}

func (f *fakeShootService) Read(ctx context.Context, user *types.User, name, namespace string) (types.Shoot, error) {
	if f.readErr != nil {
		return types.Shoot{}, f.readErr
	}
	for _, shoot := range f.shoots[namespace] {
		if shoot.Metadata.Name == name {
			return shoot, nil
		}
	}
	return types.Shoot{}, types.NewStatusError(404, "not found")
}

type fakeProjects struct {
	projects []*types.Project
	err      error
}

func (f *fakeProjects) List(ctx context.Context, user *types.User) ([]*types.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

type fakeAdmins struct {
	admin bool
	err   error
}

func (f *fakeAdmins) IsAdmin(ctx context.Context, user *types.User) (bool, error) {
	return f.admin, f.err
}

type fakeJournal struct {
	issues     []types.Issue
	numbers    map[string][]int // namespace/name -> issue numbers
	issuesErr  error
	numbersErr error
}

func (f *fakeJournal) GetIssues() ([]types.Issue, error) {
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	return f.issues, nil
}

func (f *fakeJournal) GetIssueNumbersForNameAndNamespace(name, namespace string) ([]int, error) {
	if f.numbersErr != nil {
		return nil, f.numbersErr
	}
	return f.numbers[namespace+"/"+name], nil
}

type fakeComments struct {
	pages   map[int][][]types.Comment
	failing map[int]error
}

func (f *fakeComments) GetIssueComments(number int) CommentIterator {
	if err, ok := f.failing[number]; ok {
		return &fakeIterator{err: err}
	}
	return &fakeIterator{pages: f.pages[number]}
}

type fakeIterator struct {
	pages [][]types.Comment
	err   error
	idx   int
}

func (it *fakeIterator) Next(ctx context.Context) ([]types.Comment, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.idx >= len(it.pages) {
		return nil, nil
	}
	page := it.pages[it.idx]
	it.idx++
	return page, nil
}

func testShoot(namespace, name, state string) types.Shoot {
	return types.Shoot{
		Metadata: types.Metadata{
			Name:      name,
			Namespace: namespace,
			UID:       namespace + "--" + name,
		},
		Status: types.ShootStatus{State: state},
	}
}

func projectsFor(namespaces ...string) []*types.Project {
	projects := make([]*types.Project, 0, len(namespaces))
	for _, ns := range namespaces {
		projects = append(projects, &types.Project{Name: ns, Namespace: ns})
	}
	return projects
}

func mustFilters(t *testing.T) filter.Filters {
	t.Helper()
	fs, err := filter.FromConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func newTestHub(namespace string, services Services) *Hub {
	return NewHub(namespace, nil, time.Second, services)
}

func newTestClient(hub *Hub) *Client {
	c := NewClient(hub, nil)
	c.user = &types.User{Id: "alice@example.org", Email: "alice@example.org"}
	hub.register(c)
	return c
}

// receive returns the next queued outbound message, or fails the test.
func receive(t *testing.T, c *Client) types.WebsocketMessage {
	t.Helper()
	select {
	case raw := <-c.Send:
		message := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			t.Fatal(err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return types.WebsocketMessage{}
	}
}

// receiveAll drains everything currently queued.
func receiveAll(t *testing.T, c *Client) []types.WebsocketMessage {
	t.Helper()
	messages := make([]types.WebsocketMessage, 0)
	for {
		select {
		case raw := <-c.Send:
			message := types.WebsocketMessage{}
			if err := json.Unmarshal(raw, &message); err != nil {
				t.Fatal(err)
			}
			messages = append(messages, message)
		default:
			return messages
		}
	}
}

func decodeInto(t *testing.T, message types.WebsocketMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(message.Data, out); err != nil {
		t.Fatal(err)
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message: %s", string(raw))
	default:
	}
}

func roomNames(c *Client) []string {
	c.hub.RLock()
	defer c.hub.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		if room == c.id {
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms
}
