package enrichmodule

import "strings"

// The vision backend replies with free-form prose that embeds
// machine-readable sections between fixed delimiters:
//
//	<title>Sunset over pier</title>
//	<tags>sunset, pier, ocean</tags>
//	<colors>Orange, Navy Blue</colors>
//
// A reply with no recognizable sections is still useful as a plain
// description, so parsing degrades instead of failing.

// parseOutcome reports whether a vision reply carried structured
// sections or only raw text.
type parseOutcome int

const (
	parseStructured parseOutcome = iota
	parseRawText
)

// parseVisionReply extracts the delimited sections from a model reply.
// Missing sections yield empty values, never an error.
func parseVisionReply(reply string) (Result, parseOutcome) {
	res := Result{
		Title:       extractSection(reply, "title"),
		Tags:        splitList(extractSection(reply, "tags")),
		Colors:      splitList(extractSection(reply, "colors")),
		Description: cleanDescription(reply),
	}
	if res.Title == "" && len(res.Tags) == 0 && len(res.Colors) == 0 {
		return res, parseRawText
	}
	return res, parseStructured
}

// extractSection returns the trimmed text between <name> and </name>,
// or "" when either delimiter is absent.
func extractSection(reply, name string) string {
	openTag := "<" + name + ">"
	closeTag := "</" + name + ">"
	start := strings.Index(reply, openTag)
	if start < 0 {
		return ""
	}
	start += len(openTag)
	end := strings.Index(reply[start:], closeTag)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(reply[start : start+end])
}

// splitList splits a comma-separated section into trimmed non-empty
// entries. An empty section yields an empty slice, not nil-panic fuel.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanDescription is the reply with all delimited sections and line
// breaks removed, collapsed to single-spaced prose.
func cleanDescription(reply string) string {
	for _, name := range []string{"title", "tags", "colors"} {
		reply = removeSection(reply, name)
	}
	reply = strings.ReplaceAll(reply, "\r", " ")
	reply = strings.ReplaceAll(reply, "\n", " ")
	return strings.Join(strings.Fields(reply), " ")
}

func removeSection(reply, name string) string {
	openTag := "<" + name + ">"
	closeTag := "</" + name + ">"
	start := strings.Index(reply, openTag)
	if start < 0 {
		return reply
	}
	end := strings.Index(reply[start:], closeTag)
	if end < 0 {
		return reply
	}
	return reply[:start] + reply[start+end+len(closeTag):]
}
