package models

import (
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Values the upstream sources use for match state.
const (
	Undecided       = "未定"
	StatusFinished  = "試合終了"
	StatusCancelled = "試合中止"

	DateFormat = "2006/01/02"
	TimeFormat = "15:04"
)

// Dataset file columns
const (
	ColMatchDate           = "match_date"
	ColSectionNo           = "section_no"
	ColMatchIndexInSection = "match_index_in_section"
	ColStartTime           = "start_time"
	ColStadium             = "stadium"
	ColHomeTeam            = "home_team"
	ColHomeGoal            = "home_goal"
	ColAwayGoal            = "away_goal"
	ColAwayTeam            = "away_team"
	ColStatus              = "status"
	ColGroup               = "group"
	ColHomePKScore         = "home_pk_score"
	ColAwayPKScore         = "away_pk_score"
)

// BaseColumns are always written, in this order.
var BaseColumns = []string{
	ColMatchDate, ColSectionNo, ColMatchIndexInSection, ColStartTime, ColStadium,
	ColHomeTeam, ColHomeGoal, ColAwayGoal, ColAwayTeam, ColStatus,
}

// ColumnKind is the declared storage type of a column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindNullableInt
)

// ColumnSchema declares how each known column is coerced on load.
var ColumnSchema = map[string]ColumnKind{
	ColMatchDate:           KindString,
	ColSectionNo:           KindInt,
	ColMatchIndexInSection: KindInt,
	ColStartTime:           KindString,
	ColStadium:             KindString,
	ColHomeTeam:            KindString,
	ColHomeGoal:            KindNullableInt,
	ColAwayGoal:            KindNullableInt,
	ColAwayTeam:            KindString,
	ColStatus:              KindString,
	ColGroup:               KindString,
	ColHomePKScore:         KindNullableInt,
	ColAwayPKScore:         KindNullableInt,
}

var pkScorePattern = regexp.MustCompile(`\((\d+)\s*PK\s*(\d+)\)`)

// Match is one fixture of a competition season.
// MatchIndexInSection is a sort artifact and is not part of a match's identity.
type Match struct {
	MatchDate           string
	SectionNo           int
	MatchIndexInSection int
	StartTime           string
	Stadium             string
	HomeTeam            string
	HomeGoal            sql.NullInt32
	AwayGoal            sql.NullInt32
	AwayTeam            string
	Status              string
	Group               string
	HomePKScore         sql.NullInt32
	AwayPKScore         sql.NullInt32
}

// RawRow is a match as returned by a source adapter or read from a dataset file,
// keyed by column name with loosely typed values.
type RawRow map[string]interface{}

// ToMatch converts a raw row into a Match, coercing each declared column.
// Dates that cannot be parsed are kept as-is.
func (r RawRow) ToMatch() (*Match, error) {
	sectionNo, err := r.intField(ColSectionNo)
	if err != nil {
		return nil, err
	}
	index, err := r.intField(ColMatchIndexInSection)
	if err != nil {
		return nil, err
	}

	m := &Match{
		MatchDate:           NormalizeDate(r.stringField(ColMatchDate)),
		SectionNo:           sectionNo,
		MatchIndexInSection: index,
		StartTime:           NormalizeStartTime(r.stringField(ColStartTime)),
		Stadium:             r.stringField(ColStadium),
		HomeTeam:            r.stringField(ColHomeTeam),
		HomeGoal:            r.nullableIntField(ColHomeGoal),
		AwayGoal:            r.nullableIntField(ColAwayGoal),
		AwayTeam:            r.stringField(ColAwayTeam),
		Status:              r.stringField(ColStatus),
		Group:               r.stringField(ColGroup),
		HomePKScore:         r.nullableIntField(ColHomePKScore),
		AwayPKScore:         r.nullableIntField(ColAwayPKScore),
	}

	if !m.HomePKScore.Valid && !m.AwayPKScore.Valid {
		m.HomePKScore, m.AwayPKScore = ParsePKScore(m.Status)
	}

	return m, nil
}

func (r RawRow) stringField(key string) string {
	return strings.TrimSpace(stringify(r[key]))
}

func (r RawRow) intField(key string) (int, error) {
	raw := r.stringField(key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, ok := parseInt(raw)
	if !ok {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func (r RawRow) nullableIntField(key string) sql.NullInt32 {
	n, ok := parseInt(r.stringField(key))
	if !ok {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(n), Valid: true}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.Itoa(int(val))
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(DateFormat)
	case sql.NullInt32:
		if !val.Valid {
			return ""
		}
		return strconv.Itoa(int(val.Int32))
	default:
		return fmt.Sprint(val)
	}
}

// parseInt accepts "2", "2.0" and " 2 ". Empty and "nan" are not numbers.
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

var dateLayouts = []string{
	DateFormat,
	"2006/1/2",
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006年1月2日",
	time.RFC3339,
}

// NormalizeDate rewrites a parseable date into DateFormat. Anything else is returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "(（"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateFormat)
		}
	}
	return s
}

// NormalizeStartTime rewrites "9:00" or "19:00:00" into "HH:MM". Placeholders are returned unchanged.
func NormalizeStartTime(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeFormat, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeFormat)
		}
	}
	return s
}

// ParsePKScore extracts a shoot-out result from statuses like "試合終了(1 PK 4)".
func ParsePKScore(status string) (home, away sql.NullInt32) {
	m := pkScorePattern.FindStringSubmatch(status)
	if m == nil {
		return
	}
	h, _ := strconv.Atoi(m[1])
	a, _ := strconv.Atoi(m[2])
	return sql.NullInt32{Int32: int32(h), Valid: true}, sql.NullInt32{Int32: int32(a), Valid: true}
}

// Date returns the match day at midnight in loc.
func (m *Match) Date(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DateFormat, m.MatchDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasStartTime reports whether the kick-off time is known.
func (m *Match) HasStartTime() bool {
	_, err := time.Parse(TimeFormat, m.StartTime)
	return err == nil
}

// Kickoff returns the match start in loc. An unknown start time counts as midnight.
func (m *Match) Kickoff(loc *time.Location) (time.Time, bool) {
	day, ok := m.Date(loc)
	if !ok {
		return time.Time{}, false
	}
	clock, err := time.Parse(TimeFormat, m.StartTime)
	if err != nil {
		return day, true
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
}

// IsFinished returns true if the source reports the match as completed
func (m *Match) IsFinished() bool {
	return strings.HasPrefix(m.Status, StatusFinished)
}

// IsCancelled returns true if the match was called off
func (m *Match) IsCancelled() bool {
	return m.Status == StatusCancelled
}

// Field returns the storage representation of a column. Null integers become "".
func (m *Match) Field(column string) string {
	switch column {
	case ColMatchDate:
		return m.MatchDate
	case ColSectionNo:
		return strconv.Itoa(m.SectionNo)
	case ColMatchIndexInSection:
		return strconv.Itoa(m.MatchIndexInSection)
	case ColStartTime:
		return m.StartTime
	case ColStadium:
		return m.Stadium
	case ColHomeTeam:
		return m.HomeTeam
	case ColHomeGoal:
		return stringify(m.HomeGoal)
	case ColAwayGoal:
		return stringify(m.AwayGoal)
	case ColAwayTeam:
		return m.AwayTeam
	case ColStatus:
		return m.Status
	case ColGroup:
		return m.Group
	case ColHomePKScore:
		return stringify(m.HomePKScore)
	case ColAwayPKScore:
		return stringify(m.AwayPKScore)
	}
	return ""
}
