package catalog

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"classrefresh/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched detailed-schedule page for a single candidate id.
type Page struct {
	ID   int64
	Body []byte
	Doc  *goquery.Document
	// Text is the rendered text of the whole document.
	Text string

	// retry statistics gathered by the Fetcher
	RateLimitRetries  int
	ConnectionRetries int
}

// NewPage parses `body` as html.
func NewPage(id int64, body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	var text string
	if len(doc.Nodes) > 0 {
		text = htmlutil.GetText(doc.Nodes[0])
	}
	return Page{
		ID:   id,
		Body: body,
		Doc:  doc,
		Text: text,
	}, nil
}

const (
	headerSelector = `th.ddlabel[scope="row"]`
	detailSelector = `td.dddefault`

	headerDelimiters = 3

	markerPrerequisites = "Prerequisites"
	markerRestrictions  = "Restrictions"
)

var (
	creditsRegex = regexp.MustCompile(`(\d+\.\d+)\s+Credits`)
	seatsRegex   = regexp.MustCompile(`(Waitlist )?Seats (-?\d+) (-?\d+) (-?\d+)`)
)

// Parse extracts a Course from a detailed-schedule page.
//
// It returns ErrNotFound when the page has no course on it and a *MalformedError
// when the page has a course but a required field could not be extracted.
func Parse(page Page) (Course, error) {
	if !strings.Contains(page.Text, "-") {
		return Course{}, ErrNotFound
	}
	if page.Doc == nil {
		return Course{}, malformed("document", "")
	}

	headerCell := page.Doc.Find(headerSelector).First()
	if headerCell.Length() == 0 {
		return Course{}, malformed("header", "")
	}
	header, err := SplitHeader(headerCell.Text())
	if err != nil {
		return Course{}, err
	}

	detailCell := page.Doc.Find(detailSelector).First()
	if detailCell.Length() == 0 {
		return Course{}, malformed("detail", "")
	}
	detail := htmlutil.CollapseWhitespace(detailCell.Text())

	course, err := ParseDetail(detail)
	if err != nil {
		return Course{}, err
	}
	course.ID = header.ID
	course.Name = header.Name
	course.Code = header.Code

	return course, nil
}

// Header is the decomposed `NAME - ID - CODE - SECTION` header cell.
type Header struct {
	Name string
	ID   int64
	Code string
}

// SplitHeader splits a header on its hyphen delimiters.
//
// Course names may contain hyphens themselves, so the leftmost hyphens are
// replaced with spaces until exactly three remain. This is only correct when
// the extra hyphens are all in the name, a hyphen in the code or section will
// mis-segment the header.
func SplitHeader(raw string) (Header, error) {
	count := strings.Count(raw, "-")
	if count < headerDelimiters {
		return Header{}, malformed("header", raw)
	}

	normalized := raw
	for ; count > headerDelimiters; count-- {
		normalized = strings.Replace(normalized, "-", " ", 1)
	}

	segments := strings.Split(normalized, "-")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	name, idStr, code := segments[0], segments[1], segments[2]
	if name == "" || code == "" {
		return Header{}, malformed("header", raw)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Header{}, malformed("id", raw)
	}

	return Header{Name: name, ID: id, Code: code}, nil
}

// ParseDetail extracts credits, seats and the optional clauses from the
// normalized detail line. Name, Code and ID are left empty.
func ParseDetail(detail string) (Course, error) {
	var course Course

	creditsMatch := creditsRegex.FindStringSubmatch(detail)
	if creditsMatch == nil {
		return Course{}, malformed("credits", detail)
	}
	credits, err := strconv.ParseFloat(creditsMatch[1], 64)
	if err != nil {
		return Course{}, malformed("credits", detail)
	}
	course.Credits = credits

	var foundSeats, foundWaitlist bool
	for _, match := range seatsRegex.FindAllStringSubmatch(detail, -1) {
		isWaitlist := match[1] != ""
		if (isWaitlist && foundWaitlist) || (!isWaitlist && foundSeats) {
			continue
		}

		count, err := seatCountFrom(match[2:])
		if err != nil {
			return Course{}, malformed("seats", detail)
		}
		if isWaitlist {
			course.Waitlist = count
			foundWaitlist = true
		} else {
			course.Seats = count
			foundSeats = true
		}
	}
	if !foundSeats {
		return Course{}, malformed("seats", detail)
	}
	if !foundWaitlist {
		return Course{}, malformed("waitlist seats", detail)
	}

	restrictions, prerequisites, err := extractClauses(detail)
	if err != nil {
		return Course{}, err
	}
	course.Restrictions = restrictions
	course.Prerequisites = prerequisites

	return course, nil
}

func seatCountFrom(groups []string) (SeatCount, error) {
	values := make([]int, 3)
	for i, g := range groups {
		v, err := strconv.Atoi(g)
		if err != nil {
			return SeatCount{}, err
		}
		values[i] = v
	}
	return SeatCount{
		Capacity:  values[0],
		Actual:    values[1],
		Remaining: values[2],
	}, nil
}

// ClauseLayout enumerates which optional clauses a detail line carries.
type ClauseLayout int

const (
	ClauseNeither ClauseLayout = iota
	ClausePrereqOnly
	ClauseRestrictionOnly
	ClauseBoth
)

func (l ClauseLayout) String() string {
	switch l {
	case ClauseNeither:
		return "neither"
	case ClausePrereqOnly:
		return "prereq_only"
	case ClauseRestrictionOnly:
		return "restriction_only"
	case ClauseBoth:
		return "both"
	}
	return fmt.Sprintf("ClauseLayout(%d)", int(l))
}

// LayoutOf resolves the clause layout of a detail line from its markers.
func LayoutOf(detail string) ClauseLayout {
	hasPrereq := strings.Contains(detail, markerPrerequisites)
	hasRestriction := strings.Contains(detail, markerRestrictions)
	switch {
	case hasPrereq && hasRestriction:
		return ClauseBoth
	case hasPrereq:
		return ClausePrereqOnly
	case hasRestriction:
		return ClauseRestrictionOnly
	default:
		return ClauseNeither
	}
}

// clauseAfter returns the text after `<marker>:` up to (not including) the
// first occurrence of `until`, or to the end of the line when `until` is
// empty or absent.
func clauseAfter(detail, marker, until string) (*string, error) {
	label := marker + ":"
	start := strings.Index(detail, label)
	if start < 0 {
		return nil, malformed(strings.ToLower(marker), detail)
	}
	rest := detail[start+len(label):]
	if until != "" {
		if end := strings.Index(rest, until); end >= 0 {
			rest = rest[:end]
		}
	}
	clause := strings.TrimSpace(rest)
	return &clause, nil
}

func extractClauses(detail string) (restrictions, prerequisites *string, err error) {
	switch LayoutOf(detail) {
	case ClauseBoth:
		// restrictions precede prerequisites, which run to the end of the line
		restrictions, err = clauseAfter(detail, markerRestrictions, markerPrerequisites)
		if err != nil {
			return nil, nil, err
		}
		prerequisites, err = clauseAfter(detail, markerPrerequisites, "")
		if err != nil {
			return nil, nil, err
		}
	case ClausePrereqOnly:
		prerequisites, err = clauseAfter(detail, markerPrerequisites, "")
		if err != nil {
			return nil, nil, err
		}
	case ClauseRestrictionOnly:
		restrictions, err = clauseAfter(detail, markerRestrictions, "")
		if err != nil {
			return nil, nil, err
		}
	case ClauseNeither:
	}
	return restrictions, prerequisites, nil
}
