package search

import (
	"github.com/jbuckmccready/dotfiles/internal/config"
)

// Params are the arguments of a grep call.
type Params struct {
	Pattern    string `json:"pattern" mapstructure:"pattern"`
	Path       string `json:"path,omitempty" mapstructure:"path"`
	Glob       string `json:"glob,omitempty" mapstructure:"glob"`
	IgnoreCase bool   `json:"ignoreCase,omitempty" mapstructure:"ignoreCase"`
	Literal    bool   `json:"literal,omitempty" mapstructure:"literal"`
	Context    int    `json:"context,omitempty" mapstructure:"context"`
	Limit      int    `json:"limit,omitempty" mapstructure:"limit"`
}

func (p *Params) Validate() error {
	if p.Pattern == "" {
		return &PatternRequiredError{}
	}
	if p.Context < 0 {
		p.Context = 0
	}
	return nil
}

// Limits caps grep output.
type Limits struct {
	DefaultLimit  int // matches returned when Params.Limit is unset
	MaxBytes      int // whole lines are dropped past this many bytes
	MaxLineLength int // characters kept per line
}

// LimitsFromConfig reads the grep limits from the tools section.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		DefaultLimit:  cfg.Tools.GrepDefaultLimit,
		MaxBytes:      cfg.Tools.GrepMaxBytes,
		MaxLineLength: cfg.Tools.GrepMaxLineLength,
	}
}

// Result is the formatted grep output plus what was cut.
type Result struct {
	Text       string `json:"text"`
	MatchCount int    `json:"matchCount"`
	// MatchLimitReached is the effective limit when more matches existed.
	MatchLimitReached int  `json:"matchLimitReached,omitempty"`
	BytesTruncated    bool `json:"bytesTruncated,omitempty"`
	OriginalSize      int  `json:"originalSize,omitempty"`
	LinesTruncated    bool `json:"linesTruncated,omitempty"`
}
