package models

import (
	"sort"
)

// Dataset is the ordered match list of one competition season (or sub-season).
// Methods never modify the receiver; each returns a new Dataset.
type Dataset []Match

// Clone returns a shallow copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}

// SortBySection orders rows by (section_no, match_index_in_section).
func (d Dataset) SortBySection() Dataset {
	out := d.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SectionNo != out[j].SectionNo {
			return out[i].SectionNo < out[j].SectionNo
		}
		return out[i].MatchIndexInSection < out[j].MatchIndexInSection
	})
	return out
}

// SortForComparison orders rows by (section_no, match_date, home_team).
func (d Dataset) SortForComparison() Dataset {
	out := d.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		return compareByDate(&out[i], &out[j])
	})
	return out
}

func compareByDate(a, b *Match) bool {
	if a.SectionNo != b.SectionNo {
		return a.SectionNo < b.SectionNo
	}
	if a.MatchDate != b.MatchDate {
		return a.MatchDate < b.MatchDate
	}
	return a.HomeTeam < b.HomeTeam
}

// Sections returns the sorted distinct section numbers present.
func (d Dataset) Sections() []int {
	seen := make(map[int]struct{})
	for _, m := range d {
		seen[m.SectionNo] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// WithoutSections drops every row whose section is listed.
func (d Dataset) WithoutSections(sections []int) Dataset {
	drop := make(map[int]struct{}, len(sections))
	for _, s := range sections {
		drop[s] = struct{}{}
	}
	out := make(Dataset, 0, len(d))
	for _, m := range d {
		if _, ok := drop[m.SectionNo]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// HasGroups reports whether any row carries a group label.
func (d Dataset) HasGroups() bool {
	for _, m := range d {
		if m.Group != "" {
			return true
		}
	}
	return false
}

// FilterGroup keeps the rows labelled with group.
func (d Dataset) FilterGroup(group string) Dataset {
	out := make(Dataset, 0, len(d))
	for _, m := range d {
		if m.Group == group {
			out = append(out, m)
		}
	}
	return out
}

// WithoutGroup clears the group label of every row.
func (d Dataset) WithoutGroup() Dataset {
	out := d.Clone()
	for i := range out {
		out[i].Group = ""
	}
	return out
}

// Renumber recomputes match_index_in_section from 1 within each section,
// ordering by match date then home team.
func (d Dataset) Renumber() Dataset {
	out := d.SortForComparison()
	index := 0
	prev := 0
	for i := range out {
		if i == 0 || out[i].SectionNo != prev {
			index = 0
			prev = out[i].SectionNo
		}
		index++
		out[i].MatchIndexInSection = index
	}
	return out.SortBySection()
}

// HasPKScores reports whether any row carries a penalty shoot-out result.
func (d Dataset) HasPKScores() bool {
	for _, m := range d {
		if m.HomePKScore.Valid || m.AwayPKScore.Valid {
			return true
		}
	}
	return false
}

// Columns returns the columns needed to store this dataset.
func (d Dataset) Columns() []string {
	cols := append([]string{}, BaseColumns...)
	if d.HasGroups() {
		cols = append(cols, ColGroup)
	}
	if d.HasPKScores() {
		cols = append(cols, ColHomePKScore, ColAwayPKScore)
	}
	return cols
}

// Merge replaces the given sections of existing with fetched rows.
func Merge(existing, fetched Dataset, sections []int) Dataset {
	kept := existing.WithoutSections(sections)
	out := make(Dataset, 0, len(kept)+len(fetched))
	out = append(out, kept...)
	out = append(out, fetched...)
	return out.SortBySection()
}
