// Package parser extracts the title, date, preview, and tags of a journal entry.
package parser

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
)

// DefaultTitle is used when an entry has no heading at all.
const DefaultTitle = "Untitled"

// PreviewLen is the maximum preview length in runes before truncation.
const PreviewLen = 100

// Result holds the output of parsing an entry file.
type Result struct {
	Title   string
	Date    string
	Preview string
	Tags    []string
	Body    string
}

type matter struct {
	Title string   `yaml:"title"`
	Date  string   `yaml:"date"`
	Tags  []string `yaml:"tags"`
}

// Parse derives the list projection of an entry from its file name and content.
func Parse(filename string, data []byte) *Result {
	var fm matter
	body := string(data)
	if rest, err := frontmatter.Parse(bytes.NewReader(data), &fm); err == nil {
		body = strings.TrimLeft(string(rest), "\r\n")
	} else {
		// Invalid frontmatter: the whole file is body.
		fm = matter{}
	}

	title, preview := headline(body)
	if fm.Title != "" {
		title = fm.Title
	}
	date := strings.TrimSpace(fm.Date)
	if date == "" {
		date = DateFromFilename(filename)
	}

	return &Result{
		Title:   title,
		Date:    date,
		Preview: preview,
		Tags:    dedupe(fm.Tags),
		Body:    body,
	}
}

// SplitFrontmatter separates a leading frontmatter block, delimiters
// included, from the body. block is nil when there is no valid block.
func SplitFrontmatter(data []byte) (block, body []byte) {
	var fm matter
	rest, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil || len(rest) >= len(data) || !bytes.HasSuffix(data, rest) {
		return nil, data
	}
	return data[:len(data)-len(rest)], rest
}

// DateFromFilename returns the YYYY-MM-DD prefix of an entry file name, or
// an empty string when the name does not start with a date.
func DateFromFilename(filename string) string {
	if len(filename) < len(time.DateOnly) {
		return ""
	}
	prefix := filename[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, prefix); err != nil {
		return ""
	}
	return prefix
}

// headline returns the title line and the first non-empty line after it.
func headline(body string) (string, string) {
	lines := strings.Split(body, "\n")
	title := ""
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		title = strings.TrimSpace(strings.TrimLeft(line, "# "))
		i++
		break
	}
	if title == "" {
		title = DefaultTitle
	}

	preview := ""
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			preview = truncate(line, PreviewLen)
			break
		}
	}
	return title, preview
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
