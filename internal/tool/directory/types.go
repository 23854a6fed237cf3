package directory

// FindRequest is the argument set of the find tool.
type FindRequest struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Path    string `json:"path,omitempty" mapstructure:"path"`
	Limit   int    `json:"limit,omitempty" mapstructure:"limit"`
}

func (r *FindRequest) Validate() error {
	if r.Pattern == "" {
		return ErrPatternRequired
	}
	if r.Limit < 0 {
		r.Limit = 0
	}
	return nil
}

// FindResponse holds matches relative to the search path.
type FindResponse struct {
	Text    string   `json:"text"`
	Matches []string `json:"matches"`
	// ResultLimitReached is the limit when fd stopped at it.
	ResultLimitReached int `json:"resultLimitReached,omitempty"`
}

// ListRequest is the argument set of the ls tool.
type ListRequest struct {
	Path  string `json:"path,omitempty" mapstructure:"path"`
	Limit int    `json:"limit,omitempty" mapstructure:"limit"`
}

func (r *ListRequest) Validate() error {
	if r.Limit < 0 {
		r.Limit = 0
	}
	return nil
}

// DirectoryEntry is one listed name; directories carry a trailing "/".
type DirectoryEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}

// ListResponse is the listing of one directory.
type ListResponse struct {
	Text    string           `json:"text"`
	Entries []DirectoryEntry `json:"entries"`
	// EntryLimitReached is the limit when more entries existed.
	EntryLimitReached int `json:"entryLimitReached,omitempty"`
}
