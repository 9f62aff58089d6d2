package types

// Metadata identifies a cluster resource. UID is the object identity key
// clients use to merge batched updates (objectKeyPath "metadata.uid").
type Metadata struct {
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	UID       string        `json:"uid"`
	Labels    JSONStringMap `json:"labels,omitempty"`
}

// ShootStatus is the condensed status a dashboard needs for list views and
// for fleet filter evaluation.
type ShootStatus struct {
	State     string `json:"state,omitempty"` // Pending, Processing, Succeeded, Error, Failed
	Progress  int    `json:"progress,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Shoot is a cluster resource as served to clients. Spec is carried opaquely,
// the core never looks into it.
type Shoot struct {
	Metadata Metadata               `json:"metadata"`
	Spec     map[string]interface{} `json:"spec,omitempty"`
	Status   ShootStatus            `json:"status,omitempty"`
}

// HasIssues reports whether the shoot would show up in an issues-only list.
func (s Shoot) HasIssues() bool {
	switch s.Status.State {
	case "Error", "Failed":
		return true
	}
	return s.Status.LastError != ""
}

// Project grants its members visibility into one namespace.
type Project struct {
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	Labels    JSONStringMap `json:"labels,omitempty"`
	Members   []string      `json:"members,omitempty"`
}

// FindProjectByNamespace returns the project owning the given namespace, or nil.
func FindProjectByNamespace(projects []*Project, namespace string) *Project {
	for _, p := range projects {
		if p.Namespace == namespace {
			return p
		}
	}
	return nil
}

// WatchEventType* mirror the upstream watch semantics.
const (
	WatchEventAdded    = "ADDED"
	WatchEventModified = "MODIFIED"
	WatchEventDeleted  = "DELETED"
)

// WatchEvent is one incremental change as published into rooms.
type WatchEvent struct {
	Type   string      `json:"type"`
	Object interface{} `json:"object"`
}
