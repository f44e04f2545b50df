package entities

import "strings"

var tableHeaders = []string{"Name", "Description", "Personality"}

// MarkdownTable renders characters as a GitHub-flavored markdown table.
func MarkdownTable(characters []Character) string {
	if len(characters) == 0 {
		return "No characters found"
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(tableHeaders, " | ") + " |\n")
	b.WriteString("|")
	for range tableHeaders {
		b.WriteString(" --- |")
	}
	for _, c := range characters {
		b.WriteString("\n| ")
		b.WriteString(orNA(c.Name))
		b.WriteString(" | ")
		b.WriteString(orNA(c.Description))
		b.WriteString(" | ")
		b.WriteString(orNA(c.Personality))
		b.WriteString(" |")
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
