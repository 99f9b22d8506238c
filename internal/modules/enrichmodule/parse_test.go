package enrichmodule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVisionReply_FullSections(t *testing.T) {
	reply := "A wooden pier at dusk.\n<title>Sunset Pier</title>\n" +
		"<tags>sunset, pier, ocean, dusk</tags>\n<colors>Orange, Navy Blue</colors>"

	res, outcome := parseVisionReply(reply)

	assert.Equal(t, parseStructured, outcome)
	assert.Equal(t, "Sunset Pier", res.Title)
	assert.Equal(t, []string{"sunset", "pier", "ocean", "dusk"}, res.Tags)
	assert.Equal(t, []string{"Orange", "Navy Blue"}, res.Colors)
	assert.Equal(t, "A wooden pier at dusk.", res.Description)
}

func TestParseVisionReply_MissingSections(t *testing.T) {
	res, outcome := parseVisionReply("Just a plain description\nwith two lines.")

	assert.Equal(t, parseRawText, outcome)
	assert.Empty(t, res.Title)
	assert.Equal(t, []string{}, res.Tags)
	assert.Equal(t, []string{}, res.Colors)
	assert.Equal(t, "Just a plain description with two lines.", res.Description)
}

func TestParseVisionReply_UnterminatedSection(t *testing.T) {
	res, _ := parseVisionReply("text <tags>sunset, pier")

	assert.Equal(t, []string{}, res.Tags)
}

func TestParseVisionReply_EmptySection(t *testing.T) {
	res, outcome := parseVisionReply("desc <tags></tags><colors> , ,</colors>")

	assert.Equal(t, parseRawText, outcome)
	assert.Equal(t, []string{}, res.Tags)
	assert.Equal(t, []string{}, res.Colors)
}

func TestCleanDescription_StripsSectionsAndNewlines(t *testing.T) {
	got := cleanDescription("line one\n<tags>a, b</tags>\r\nline two\n<colors>Red</colors>")

	assert.Equal(t, "line one line two", got)
}
