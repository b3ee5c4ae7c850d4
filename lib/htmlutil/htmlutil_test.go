package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body><p>Seats <b>1</b></p><p>2</p></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Seats 12", GetText(doc))
}

func TestCollapseWhitespace(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  3.000 \n  Credits  ", expected: "3.000 Credits"},
		{input: "Seats\t58\n57\r\n0", expected: "Seats 58 57 0"},
		{input: "\u00a0Capacity\u00a0 Actual", expected: "Capacity Actual"},
		{input: "", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, CollapseWhitespace(row.input))
	}
}
