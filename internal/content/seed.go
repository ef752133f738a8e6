package content

import (
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// seedFile is the TOML layout accepted by LoadSeedFile.
type seedFile struct {
	Items []seedItem `toml:"item"`
}

type seedItem struct {
	ID            string `toml:"id"`
	Kind          string `toml:"kind"`
	PlanID        string `toml:"plan_id"`
	DayNumber     int    `toml:"day_number"`
	Title         string `toml:"title"`
	ScriptureRef  string `toml:"scripture_ref"`
	ScriptureText string `toml:"scripture_text"`
	Teaching      string `toml:"teaching"`
	Reflection    string `toml:"reflection"`
	Action        string `toml:"action"`
	Prayer        string `toml:"prayer"`
	CTA           string `toml:"cta"`
	WeekTheme     string `toml:"week_theme"`
	Date          string `toml:"date"`
}

// ParseSeed decodes content items from TOML. Dates are quoted "YYYY-MM-DD" strings.
func ParseSeed(data []byte) ([]core.ContentItem, error) {
	var file seedFile

	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode seed TOML: %w", err)
	}

	items := make([]core.ContentItem, 0, len(file.Items))

	for _, seed := range file.Items {
		kind := core.Kind(seed.Kind)
		if kind == "" {
			kind = core.KindSpark
		}

		item := core.ContentItem{
			ID:            seed.ID,
			Kind:          kind,
			ParentID:      seed.PlanID,
			DayNumber:     seed.DayNumber,
			Title:         seed.Title,
			ScriptureRef:  seed.ScriptureRef,
			ScriptureText: seed.ScriptureText,
			Teaching:      seed.Teaching,
			Reflection:    seed.Reflection,
			Action:        seed.Action,
			Prayer:        seed.Prayer,
			CTA:           seed.CTA,
			WeekTheme:     seed.WeekTheme,
		}

		if seed.Date != "" {
			date, err := civil.ParseDate(seed.Date)
			if err != nil {
				return nil, fmt.Errorf("item %s has invalid date %q: %w", seed.ID, seed.Date, err)
			}

			item.Date = date
		}

		items = append(items, item)
	}

	return items, nil
}

// LoadSeedFile reads and decodes a TOML seed file.
func LoadSeedFile(path string) ([]core.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	return ParseSeed(data)
}
