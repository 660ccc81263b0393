// Package seasonmap loads the group → competition → season configuration
// document and answers season questions about it.
package seasonmap

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Option keys a season entry may carry.
const (
	OptRankProperties   = "rank_properties"
	OptGroupDisplay     = "group_display"
	OptURLCategory      = "url_category"
	OptLeagueDisplay    = "league_display"
	OptPointSystem      = "point_system"
	OptCSSFiles         = "css_files"
	OptTeamRenameMap    = "team_rename_map"
	OptTiebreakOrder    = "tiebreak_order"
	OptSeasonStartMonth = "season_start_month"
)

var knownOptions = map[string]struct{}{
	OptRankProperties:   {},
	OptGroupDisplay:     {},
	OptURLCategory:      {},
	OptLeagueDisplay:    {},
	OptPointSystem:      {},
	OptCSSFiles:         {},
	OptTeamRenameMap:    {},
	OptTiebreakOrder:    {},
	OptSeasonStartMonth: {},
}

// Document is the whole season map, keyed by group (e.g. "jleague").
type Document map[string]*GroupEntry

// GroupEntry holds defaults shared by a family of competitions.
type GroupEntry struct {
	DisplayName      string                       `yaml:"display_name"`
	SeasonStartMonth int                          `yaml:"season_start_month" validate:"omitempty,min=1,max=12"`
	Competitions     map[string]*CompetitionEntry `yaml:"competitions"`
}

// CompetitionEntry describes one competition and its seasons.
type CompetitionEntry struct {
	LeagueDisplay    string                  `yaml:"league_display"`
	SeasonStartMonth int                     `yaml:"season_start_month" validate:"omitempty,min=1,max=12"`
	Source           string                  `yaml:"source" validate:"omitempty,oneof=jleague jfa"`
	URLFormat        string                  `yaml:"url_format"`
	FeedGroups       []string                `yaml:"feed_groups"`
	MatchesInSection int                     `yaml:"matches_in_section" validate:"omitempty,min=1"`
	Seasons          map[string]*SeasonEntry `yaml:"seasons"`
}

// SeasonEntry is one season of a competition. In the document it is written
// as a positional array: [team_count, promotion, relegation, [teams...], {options}].
type SeasonEntry struct {
	TeamCount  int                    `validate:"min=2"`
	Promotion  int                    `validate:"min=0"`
	Relegation int                    `validate:"min=0"`
	Teams      []string               `validate:"dive,required"`
	Options    map[string]interface{} `validate:"-"`
}

// UnmarshalYAML decodes the positional array form.
func (e *SeasonEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: season entry must be a list", node.Line)
	}
	if len(node.Content) < 3 {
		return fmt.Errorf("line %d: season entry needs at least team count, promotion and relegation", node.Line)
	}

	ints := []*int{&e.TeamCount, &e.Promotion, &e.Relegation}
	for i, dst := range ints {
		if err := node.Content[i].Decode(dst); err != nil {
			return fmt.Errorf("line %d: season entry field %d must be an integer: %w", node.Content[i].Line, i, err)
		}
	}
	if len(node.Content) > 3 {
		if err := node.Content[3].Decode(&e.Teams); err != nil {
			return fmt.Errorf("line %d: team list must be a list of names: %w", node.Content[3].Line, err)
		}
	}
	if len(node.Content) > 4 {
		if err := node.Content[4].Decode(&e.Options); err != nil {
			return fmt.Errorf("line %d: season options must be a mapping: %w", node.Content[4].Line, err)
		}
	}
	if len(node.Content) > 5 {
		return fmt.Errorf("line %d: season entry has %d fields, expected at most 5", node.Line, len(node.Content))
	}
	return nil
}

// MarshalYAML writes the positional array form back.
func (e SeasonEntry) MarshalYAML() (interface{}, error) {
	out := []interface{}{e.TeamCount, e.Promotion, e.Relegation, e.Teams}
	if len(e.Options) > 0 {
		out = append(out, e.Options)
	}
	return out, nil
}

// StringOption returns a string-valued option, or "".
func (e *SeasonEntry) StringOption(key string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return ""
}

// IntOption returns an integer-valued option.
func (e *SeasonEntry) IntOption(key string) (int, bool) {
	switch v := e.Options[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// GroupDisplay is the label used to pick this sub-season's rows from a shared feed.
func (e *SeasonEntry) GroupDisplay() string {
	return e.StringOption(OptGroupDisplay)
}

// URLCategory overrides the fetch path of the competition.
func (e *SeasonEntry) URLCategory() string {
	return e.StringOption(OptURLCategory)
}

// StartMonth returns the season_start_month option when set.
func (e *SeasonEntry) StartMonth() (int, bool) {
	m, ok := e.IntOption(OptSeasonStartMonth)
	if !ok || m < 1 || m > 12 {
		return 0, false
	}
	return m, true
}

// UnknownOptions lists option keys this program does not interpret.
func (e *SeasonEntry) UnknownOptions() []string {
	var out []string
	for k := range e.Options {
		if _, ok := knownOptions[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Load reads and validates a season map file. JSON documents are accepted as well.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read season map: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load season map %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a season map document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse season map: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks mandatory fields and warns about unknown season options.
func (d Document) Validate() error {
	v := validator.New()

	for groupKey, group := range d {
		if group == nil {
			return fmt.Errorf("group %q is empty", groupKey)
		}
		if err := v.Struct(group); err != nil {
			return fmt.Errorf("invalid group %q: %w", groupKey, err)
		}
		for compKey, comp := range group.Competitions {
			if comp == nil {
				return fmt.Errorf("competition %s/%s is empty", groupKey, compKey)
			}
			if err := v.Struct(comp); err != nil {
				return fmt.Errorf("invalid competition %s/%s: %w", groupKey, compKey, err)
			}
			for seasonKey, entry := range comp.Seasons {
				if entry == nil {
					return fmt.Errorf("season %s/%s/%s is empty", groupKey, compKey, seasonKey)
				}
				if err := v.Struct(entry); err != nil {
					return fmt.Errorf("invalid season %s/%s/%s: %w", groupKey, compKey, seasonKey, err)
				}
				if unknown := entry.UnknownOptions(); len(unknown) > 0 {
					log.Warn().
						Str("group", groupKey).
						Str("competition", compKey).
						Str("season", seasonKey).
						Strs("options", unknown).
						Msg("Unknown season options ignored")
				}
			}
		}
	}

	return nil
}
