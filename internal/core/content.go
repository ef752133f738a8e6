package core

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Kind distinguishes the families of narrated content.
type Kind string

const (
	// KindSpark is a single daily devotional.
	KindSpark Kind = "spark"
	// KindReadingPlan is one day of a multi-day reading plan.
	KindReadingPlan Kind = "reading-plan"
)

// ContentItem is one day's devotional or reading record.
type ContentItem struct {
	ID            string
	Kind          Kind
	ParentID      string
	DayNumber     int
	Title         string
	ScriptureRef  string
	ScriptureText string
	Teaching      string
	Reflection    string
	Action        string
	Prayer        string
	CTA           string
	WeekTheme     string
	Date          civil.Date
}

// HasTeaching reports whether the item carries the body required for narration.
func (c ContentItem) HasTeaching() bool {
	return strings.TrimSpace(c.Teaching) != ""
}
