package catalog

import (
	"errors"
	"testing"

	"classrefresh/internal/catalog/catalogtest"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string {
	return &s
}

func parseFixture(t testing.TB, id int64, name string) (Course, error) {
	page, err := NewPage(id, catalogtest.Fixture(name))
	if err != nil {
		t.Fatal(err)
	}
	return Parse(page)
}

func TestParseFixtures(t *testing.T) {
	table := []struct {
		name     string
		id       int64
		expected Course
	}{
		{
			name: "80007",
			id:   80007,
			expected: Course{
				ID:            80007,
				Code:          "ABC 123",
				Name:          "Class A",
				Credits:       3,
				Seats:         SeatCount{Capacity: 58, Actual: 57, Remaining: 0},
				Waitlist:      SeatCount{Capacity: 30, Actual: 27, Remaining: 3},
				Restrictions:  strptr("a restriction"),
				Prerequisites: strptr("a prerequisite"),
			},
		},
		{
			name: "80008",
			id:   80008,
			expected: Course{
				ID:            80008,
				Code:          "CBA 321",
				Name:          "Class B",
				Credits:       3,
				Seats:         SeatCount{Capacity: 55, Actual: 55, Remaining: 0},
				Waitlist:      SeatCount{Capacity: 30, Actual: 2, Remaining: 28},
				Restrictions:  strptr("b restrictions"),
				Prerequisites: strptr("b prerequisites"),
			},
		},
		{
			name: "80010",
			id:   80010,
			expected: Course{
				ID:            80010,
				Code:          "CS 4001",
				Name:          "Intro to AI",
				Credits:       3,
				Seats:         SeatCount{Capacity: 40, Actual: 42, Remaining: -2},
				Waitlist:      SeatCount{Capacity: 10, Actual: 0, Remaining: 10},
				Prerequisites: strptr("Undergraduate Semester level CS 1332 Minimum Grade of C"),
			},
		},
		{
			name: "80011",
			id:   80011,
			expected: Course{
				ID:           80011,
				Code:         "ECE 4873",
				Name:         "Senior Design",
				Credits:      3,
				Seats:        SeatCount{Capacity: 24, Actual: 20, Remaining: 4},
				Waitlist:     SeatCount{Capacity: 5, Actual: 1, Remaining: 4},
				Restrictions: strptr("Must be enrolled in one of the following Levels: Undergraduate Semester"),
			},
		},
		{
			name: "80012",
			id:   80012,
			expected: Course{
				ID:       80012,
				Code:     "MATH 8900",
				Name:     "Seminar",
				Credits:  3,
				Seats:    SeatCount{Capacity: 10, Actual: 3, Remaining: 7},
				Waitlist: SeatCount{Capacity: 0, Actual: 0, Remaining: 0},
			},
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			course, err := parseFixture(t, test.id, test.name)
			require.NoError(t, err)
			require.Equal(t, test.expected, course)
		})
	}
}

func TestParseNotFound(t *testing.T) {
	_, err := parseFixture(t, 80009, "notfound")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseMalformed(t *testing.T) {
	_, err := parseFixture(t, 80013, "malformed")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)

	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	require.Equal(t, "credits", malformedErr.Field)
}

func TestParseHyphenWithoutCourse(t *testing.T) {
	page, err := NewPage(1, []byte(`<html><body><p>2020-08-01</p></body></html>`))
	require.NoError(t, err)

	_, err = Parse(page)
	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	require.Equal(t, "header", malformedErr.Field)
}

func TestSplitHeader(t *testing.T) {
	table := []struct {
		raw      string
		expected Header
	}{
		{
			raw:      "Class A - 80007 - ABC 123 - A",
			expected: Header{Name: "Class A", ID: 80007, Code: "ABC 123"},
		},
		{
			raw:      "Intro-to-AI - 12345 - CS4001 - 01",
			expected: Header{Name: "Intro to AI", ID: 12345, Code: "CS4001"},
		},
		{
			raw:      "  Padded   -  7  -  X 1  -  ",
			expected: Header{Name: "Padded", ID: 7, Code: "X 1"},
		},
	}

	for _, test := range table {
		t.Run(test.raw, func(t *testing.T) {
			header, err := SplitHeader(test.raw)
			require.NoError(t, err)
			require.Equal(t, test.expected, header)
		})
	}
}

func TestSplitHeaderInvalid(t *testing.T) {
	table := []struct {
		raw   string
		field string
	}{
		{raw: "no delimiters", field: "header"},
		{raw: "A - 1 - B", field: "header"},
		{raw: " - 1 - B - C", field: "header"},
		{raw: "A - one - B - C", field: "id"},
	}

	for _, test := range table {
		t.Run(test.raw, func(t *testing.T) {
			_, err := SplitHeader(test.raw)
			var malformedErr *MalformedError
			require.True(t, errors.As(err, &malformedErr))
			require.Equal(t, test.field, malformedErr.Field)
		})
	}
}

func TestParseDetail(t *testing.T) {
	detail := "Associated Term: Fall 2020 Lecture Schedule Type 4.000 Credits " +
		"Registration Availability Capacity Actual Remaining " +
		"Seats 100 101 -1 Waitlist Seats 0 0 0"

	course, err := ParseDetail(detail)
	require.NoError(t, err)
	require.Equal(t, 4.0, course.Credits)
	require.Equal(t, SeatCount{Capacity: 100, Actual: 101, Remaining: -1}, course.Seats)
	require.Equal(t, SeatCount{}, course.Waitlist)
	require.Nil(t, course.Restrictions)
	require.Nil(t, course.Prerequisites)
}

func TestParseDetailMissingWaitlist(t *testing.T) {
	_, err := ParseDetail("3.000 Credits Seats 1 2 3")
	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	require.Equal(t, "waitlist seats", malformedErr.Field)
}

func TestParseDetailMissingSeats(t *testing.T) {
	_, err := ParseDetail("3.000 Credits Capacity Actual Remaining")
	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	require.Equal(t, "seats", malformedErr.Field)
}

func TestClauses(t *testing.T) {
	const base = "3.000 Credits Seats 1 1 0 Waitlist Seats 0 0 0"

	table := []struct {
		name          string
		detail        string
		layout        ClauseLayout
		restrictions  *string
		prerequisites *string
	}{
		{
			name:   "neither",
			detail: base,
			layout: ClauseNeither,
		},
		{
			name:          "prerequisites only",
			detail:        base + " Prerequisites: CS 1331 Minimum Grade of C",
			layout:        ClausePrereqOnly,
			prerequisites: strptr("CS 1331 Minimum Grade of C"),
		},
		{
			name:         "restrictions only",
			detail:       base + " Restrictions: Must be enrolled in the following Campuses: Atlanta",
			layout:       ClauseRestrictionOnly,
			restrictions: strptr("Must be enrolled in the following Campuses: Atlanta"),
		},
		{
			name:          "both",
			detail:        base + " Restrictions: Juniors only Prerequisites: MATH 1552",
			layout:        ClauseBoth,
			restrictions:  strptr("Juniors only"),
			prerequisites: strptr("MATH 1552"),
		},
		{
			name:          "both in reverse order",
			detail:        base + " Prerequisites: MATH 1552 Restrictions: Juniors only",
			layout:        ClauseBoth,
			restrictions:  strptr("Juniors only"),
			prerequisites: strptr("MATH 1552 Restrictions: Juniors only"),
		},
		{
			name:          "prerequisites mentioning restrictions",
			detail:        base + " Restrictions: r1 Prerequisites: p1 Restrictions apply to majors",
			layout:        ClauseBoth,
			restrictions:  strptr("r1"),
			prerequisites: strptr("p1 Restrictions apply to majors"),
		},
		{
			name:          "empty clause",
			detail:        base + " Prerequisites:",
			layout:        ClausePrereqOnly,
			prerequisites: strptr(""),
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.layout, LayoutOf(test.detail))

			course, err := ParseDetail(test.detail)
			require.NoError(t, err)
			require.Equal(t, test.restrictions, course.Restrictions)
			require.Equal(t, test.prerequisites, course.Prerequisites)
		})
	}
}

func TestClauseMarkerWithoutColon(t *testing.T) {
	_, err := ParseDetail("3.000 Credits Seats 1 1 0 Waitlist Seats 0 0 0 see Prerequisites below")
	var malformedErr *MalformedError
	require.True(t, errors.As(err, &malformedErr))
	require.Equal(t, "prerequisites", malformedErr.Field)
}
