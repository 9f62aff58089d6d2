package journal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gardenhub/shoot-events/types"
	"github.com/tidwall/buntdb"
)

// Cache is the in-memory journal cache. It is read concurrently by every
// connection subscribing to issues or comments; buntdb gives us lock-free
// snapshot reads via View transactions.
//
// Two key families are kept:
//
//	issue:<number>              -> issue JSON
//	ref:<namespace>/<name>:<number> -> ""
//
// The ref keys are the per-resource index behind
// GetIssueNumbersForNameAndNamespace.
type Cache struct {
	db *buntdb.DB
}

func NewCache() (*Cache, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func issueKey(number int) string {
	return fmt.Sprintf("issue:%d", number)
}

func refKey(namespace, name string, number int) string {
	return fmt.Sprintf("ref:%s/%s:%d", namespace, name, number)
}

// GetIssues returns all cached issues.
func (c *Cache) GetIssues() ([]types.Issue, error) {
	issues := make([]types.Issue, 0)
	err := c.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.AscendKeys("issue:*", func(key, value string) bool {
			issue := types.Issue{}
			if err := json.Unmarshal([]byte(value), &issue); err != nil {
				iterErr = err
				return false
			}
			issues = append(issues, issue)
			return true
		})
		if err != nil {
			return err
		}
		return iterErr
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue returns one cached issue by number.
func (c *Cache) GetIssue(number int) (types.Issue, bool, error) {
	issue := types.Issue{}
	found := false
	err := c.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(issueKey(number))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(value), &issue); err != nil {
			return err
		}
		found = true
		return nil
	})
	return issue, found, err
}

// GetIssueNumbersForNameAndNamespace returns the numbers of all cached
// issues attached to the given shoot.
func (c *Cache) GetIssueNumbersForNameAndNamespace(name, namespace string) ([]int, error) {
	prefix := fmt.Sprintf("ref:%s/%s:", namespace, name)
	numbers := make([]int, 0)
	err := c.db.View(func(tx *buntdb.Tx) error {
		var iterErr error
		err := tx.AscendKeys(prefix+"*", func(key, value string) bool {
			number, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
			if err != nil {
				iterErr = err
				return false
			}
			numbers = append(numbers, number)
			return true
		})
		if err != nil {
			return err
		}
		return iterErr
	})
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// UpdateIssue inserts or replaces one issue. It reports whether the cache
// content actually changed, so callers can skip fan-out for no-op syncs.
func (c *Cache) UpdateIssue(issue types.Issue) (bool, error) {
	data, err := json.Marshal(issue)
	if err != nil {
		return false, err
	}
	changed := true
	err = c.db.Update(func(tx *buntdb.Tx) error {
		old, err := tx.Get(issueKey(issue.Number))
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		if err == nil {
			if old == string(data) {
				changed = false
				return nil
			}
			oldIssue := types.Issue{}
			if err := json.Unmarshal([]byte(old), &oldIssue); err == nil {
				if oldIssue.Namespace != issue.Namespace || oldIssue.Name != issue.Name {
					_, _ = tx.Delete(refKey(oldIssue.Namespace, oldIssue.Name, oldIssue.Number))
				}
			}
		}
		if _, _, err := tx.Set(issueKey(issue.Number), string(data), nil); err != nil {
			return err
		}
		_, _, err = tx.Set(refKey(issue.Namespace, issue.Name, issue.Number), "", nil)
		return err
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// DeleteIssue removes one issue and its ref key.
func (c *Cache) DeleteIssue(number int) (bool, error) {
	deleted := false
	err := c.db.Update(func(tx *buntdb.Tx) error {
		old, err := tx.Delete(issueKey(number))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		oldIssue := types.Issue{}
		if err := json.Unmarshal([]byte(old), &oldIssue); err == nil {
			_, _ = tx.Delete(refKey(oldIssue.Namespace, oldIssue.Name, oldIssue.Number))
		}
		return nil
	})
	return deleted, err
}

// Replace reconciles the cache against a full upstream issue list and
// returns the resulting change set.
func (c *Cache) Replace(issues []types.Issue) (changes []types.WatchEvent, err error) {
	known := make(map[int]struct{})
	current, err := c.GetIssues()
	if err != nil {
		return nil, err
	}
	for _, issue := range current {
		known[issue.Number] = struct{}{}
	}
	for _, issue := range issues {
		_, existed := known[issue.Number]
		delete(known, issue.Number)
		changed, err := c.UpdateIssue(issue)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		eventType := types.WatchEventModified
		if !existed {
			eventType = types.WatchEventAdded
		}
		changes = append(changes, types.WatchEvent{Type: eventType, Object: issue})
	}
	for number := range known {
		issue, found, err := c.GetIssue(number)
		if err != nil {
			return nil, err
		}
		if _, err := c.DeleteIssue(number); err != nil {
			return nil, err
		}
		if found {
			changes = append(changes, types.WatchEvent{Type: types.WatchEventDeleted, Object: issue})
		}
	}
	return changes, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
