package types

import "time"

// Issue is a journal entry attached to one shoot.
type Issue struct {
	Number    int       `json:"number"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	State     string    `json:"state,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Comment belongs to one issue.
type Comment struct {
	Id        int       `json:"id"`
	Number    int       `json:"number"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// IssueImport is one issue together with its comments, the unit of the
// admin import command.
type IssueImport struct {
	Issue    Issue     `json:"issue"`
	Comments []Comment `json:"comments,omitempty"`
}
