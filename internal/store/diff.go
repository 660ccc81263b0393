package store

import (
	"strconv"

	"jpoints/ingestion/internal/models"
)

// comparedColumns are the columns that make two datasets different.
// match_index_in_section is derived from sort order and is left out.
var comparedColumns = []string{
	models.ColMatchDate,
	models.ColSectionNo,
	models.ColStartTime,
	models.ColStadium,
	models.ColHomeTeam,
	models.ColHomeGoal,
	models.ColAwayGoal,
	models.ColAwayTeam,
	models.ColStatus,
	models.ColGroup,
	models.ColHomePKScore,
	models.ColAwayPKScore,
}

// FieldDiff describes one differing cell after both sides are sorted for comparison.
type FieldDiff struct {
	Row    int
	Column string
	Old    string
	New    string
}

// Differ reports whether two datasets hold different matches, ignoring row
// order, match_index_in_section and null/empty formatting. The returned diffs
// list at most limit cells (all when limit <= 0).
func Differ(old, new models.Dataset, limit int) (bool, []FieldDiff) {
	if len(old) != len(new) {
		return true, []FieldDiff{{Row: -1, Column: "rows", Old: strconv.Itoa(len(old)), New: strconv.Itoa(len(new))}}
	}

	a := old.SortForComparison()
	b := new.SortForComparison()

	var diffs []FieldDiff
	for i := range a {
		for _, col := range comparedColumns {
			av, bv := a[i].Field(col), b[i].Field(col)
			if av == bv {
				continue
			}
			if limit > 0 && len(diffs) >= limit {
				return true, diffs
			}
			diffs = append(diffs, FieldDiff{Row: i, Column: col, Old: av, New: bv})
		}
	}

	return len(diffs) > 0, diffs
}
