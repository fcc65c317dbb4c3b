package domain

// Project is the expanded view of a project record: the post itself plus its
// metadata and client term. It is the shape returned by every read path and
// the shape stored in the list cache.
type Project struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Status         Status  `json:"status"`
	Budget         float64 `json:"budget"`
	ProjectManager int64   `json:"project_manager"`
	Client         string  `json:"client"`
}

// Client is a term of the client taxonomy.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Filter narrows a project listing. Empty strings mean "not filtered".
type Filter struct {
	Status string
	Client string
}

func (f Filter) IsEmpty() bool {
	return f.Status == "" && f.Client == ""
}

// Deleted is the confirmation returned by a successful delete.
type Deleted struct {
	Deleted bool `json:"deleted"`
}
