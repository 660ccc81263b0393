// Package jleague reads the per-section match list pages of the J.League site.
package jleague

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"jpoints/ingestion/internal/fetcher"
	"jpoints/ingestion/internal/models"
)

// DefaultURLFormat is the section page address. {category} is the fetch path
// ("j1", "j2j3", ...) and {section} the section number.
const DefaultURLFormat = "https://www.jleague.jp/match/section/{category}/{section}/"

var (
	sectionPattern = regexp.MustCompile(`第\s*(\d+)\s*節`)
	groupPattern   = regexp.MustCompile(`[A-Z]{2,}(?:-[A-Z0-9]+)?`)
)

// Fetcher is the HTTP dependency of the adapter.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Source implements fetcher.SectionSource for J.League section pages.
type Source struct {
	client    Fetcher
	urlFormat string
}

// NewSource creates a section source. An empty urlFormat uses DefaultURLFormat.
func NewSource(client Fetcher, urlFormat string) *Source {
	if urlFormat == "" {
		urlFormat = DefaultURLFormat
	}
	return &Source{client: client, urlFormat: urlFormat}
}

// SectionURL returns the page address of one section.
func (s *Source) SectionURL(fetchPath string, section int) string {
	return strings.NewReplacer(
		"{category}", fetchPath,
		"{section}", strconv.Itoa(section),
	).Replace(s.urlFormat)
}

// FetchSection downloads and parses one section page.
func (s *Source) FetchSection(ctx context.Context, fetchPath string, section int) ([]models.RawRow, error) {
	url := s.SectionURL(fetchPath, section)
	log.Debug().Str("url", url).Msg("Reading section page")

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	rows, err := ParseSectionPage(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return rows, nil
}

// ParseSectionPage extracts every match of a section page. The match index
// counts across the whole page. A page without match rows yields no rows;
// a page with rows whose section title does not parse is format drift.
func ParseSectionPage(doc *goquery.Document) ([]models.RawRow, error) {
	var (
		rows     []models.RawRow
		parseErr error
		index    = 1
	)

	doc.Find("section.matchlistWrap").EachWithBreak(func(_ int, sec *goquery.Selection) bool {
		matchDate := models.Undecided
		if h4 := sec.Find("div.timeStamp h4").First(); h4.Length() > 0 {
			if text := strings.TrimSpace(h4.Text()); text != "" {
				matchDate = models.NormalizeDate(text)
			}
		}

		title := strings.TrimSpace(sec.Find("div.leagAccTit h5").First().Text())
		matchRows := sec.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("td.stadium").Length() > 0
		})
		if matchRows.Length() == 0 {
			return true
		}

		sectionNo, group, ok := parseTitle(title)
		if !ok {
			parseErr = fmt.Errorf("%w: section title %q", fetcher.ErrFormatDrift, title)
			return false
		}

		matchRows.Each(func(_ int, tr *goquery.Selection) {
			row := parseMatchRow(tr)
			row[models.ColMatchDate] = matchDate
			row[models.ColSectionNo] = sectionNo
			row[models.ColMatchIndexInSection] = index
			if group != "" {
				row[models.ColGroup] = group
			}
			rows = append(rows, row)
			index++
		})
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

// parseTitle reads "第N節" and an optional upper-case group label in front of it,
// e.g. "明治安田J1百年構想リーグ EAST 第1節".
func parseTitle(title string) (int, string, bool) {
	title = toHalfWidth(title)
	loc := sectionPattern.FindStringSubmatchIndex(title)
	if loc == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(title[loc[2]:loc[3]])
	if err != nil {
		return 0, "", false
	}

	var group string
	if labels := groupPattern.FindAllString(title[:loc[0]], -1); len(labels) > 0 {
		group = labels[len(labels)-1]
	}
	return n, group, true
}

func parseMatchRow(tr *goquery.Selection) models.RawRow {
	stadiumTD := tr.Find("td.stadium").First()
	clubs := tr.Find("td.clubName")
	points := tr.Find("td.point")

	row := models.RawRow{
		models.ColStartTime: leadingText(stadiumTD),
		models.ColStadium:   strings.TrimSpace(stadiumTD.Find("a").First().Text()),
		models.ColHomeTeam:  strings.TrimSpace(clubs.First().Text()),
		models.ColAwayTeam:  strings.TrimSpace(clubs.Last().Text()),
		models.ColHomeGoal:  "",
		models.ColAwayGoal:  "",
		models.ColStatus:    strings.TrimSpace(tr.Find("td.status").First().Text()),
	}
	if points.Length() >= 2 {
		row[models.ColHomeGoal] = strings.TrimSpace(points.First().Text())
		row[models.ColAwayGoal] = strings.TrimSpace(points.Last().Text())
	}
	return row
}

// leadingText returns the text of a cell before its first <br>, the kick-off time.
func leadingText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		node := c.Get(0)
		if node.Type == html.ElementNode && node.Data == "br" {
			return false
		}
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

func toHalfWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '０' && r <= '９':
			return r - '０' + '0'
		case r >= 'Ａ' && r <= 'Ｚ':
			return r - 'Ａ' + 'A'
		case r == '－':
			return '-'
		case r == '　':
			return ' '
		}
		return r
	}, s)
}
