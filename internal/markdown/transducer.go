// Package markdown converts between the editor's HTML fragments and the
// Markdown stored on disk.
//
// ToMarkdown is a lightweight one-way formatter, not a parser: it rewrites
// a constrained fragment (headings, paragraphs, emphasis, lists, line
// breaks) with an ordered chain of regular expressions. Anything outside
// that vocabulary is reduced to plain text.
package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// UntitledTitle is used when a fragment carries no level-1 heading.
const UntitledTitle = "Untitled"

// fragmentPolicy reduces arbitrary editor markup to the tags the
// substitution chain understands. Attributes are dropped, unknown elements
// are unwrapped, script and style bodies are removed.
var fragmentPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("h1", "h2", "h3", "p", "strong", "b", "em", "i", "ul", "ol", "li", "br")
	return p
}()

var (
	titleRe    = regexp.MustCompile(`(?is)<h1>(.*?)</h1>`)
	interTagRe = regexp.MustCompile(`>[ \t\r]*\n\s*<`)
	orderedRe  = regexp.MustCompile(`(?is)<ol>(.*?)</ol>`)
	listItemRe = regexp.MustCompile(`(?is)<li>(.*?)</li>`)
	anyTagRe   = regexp.MustCompile(`<[^>]+>`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)

	// Order matters: inline emphasis is rewritten before the block that
	// contains it is unwrapped.
	substitutions = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?is)<h2>(.*?)</h2>`), "## $1\n\n"},
		{regexp.MustCompile(`(?is)<h3>(.*?)</h3>`), "### $1\n\n"},
		{regexp.MustCompile(`(?is)<(?:strong|b)>(.*?)</(?:strong|b)>`), "**$1**"},
		{regexp.MustCompile(`(?is)<(?:em|i)>(.*?)</(?:em|i)>`), "*$1*"},
		{regexp.MustCompile(`(?is)<p>(.*?)</p>`), "$1\n\n"},
		{regexp.MustCompile(`(?i)<br\s*/?>`), "\n"},
		{regexp.MustCompile(`(?is)<ul>(.*?)</ul>`), "$1\n"},
		{listItemRe, "- $1\n"},
	}
)

// ToMarkdown converts an editor HTML fragment into a Markdown document.
// The result always starts with a level-1 heading: the text of the first
// <h1>, or UntitledTitle when there is none or it is blank. Only the first
// <h1> is consumed; later ones are reduced to plain text.
func ToMarkdown(fragment string) string {
	content := fragmentPolicy.Sanitize(fragment)
	content = interTagRe.ReplaceAllString(content, "><")

	title := ""
	if m := titleRe.FindStringSubmatchIndex(content); m != nil {
		title = strings.TrimSpace(plainText(content[m[2]:m[3]]))
		content = content[:m[0]] + content[m[1]:]
	}
	if title == "" {
		title = UntitledTitle
	}

	content = orderedRe.ReplaceAllStringFunc(content, numberItems)
	for _, s := range substitutions {
		content = s.re.ReplaceAllString(content, s.repl)
	}

	body := plainText(content)
	body = blankRunRe.ReplaceAllString(body, "\n\n")

	return "# " + title + "\n\n" + strings.TrimSpace(body)
}

// numberItems rewrites one <ol> block into "1. ", "2. " ... lines.
func numberItems(block string) string {
	inner := orderedRe.FindStringSubmatch(block)[1]
	n := 0
	inner = listItemRe.ReplaceAllStringFunc(inner, func(item string) string {
		n++
		return strconv.Itoa(n) + ". " + listItemRe.FindStringSubmatch(item)[1] + "\n"
	})
	return inner + "\n"
}

// plainText strips every remaining tag and decodes entities.
func plainText(s string) string {
	return html.UnescapeString(anyTagRe.ReplaceAllString(s, ""))
}

// IsBlank reports whether fragment has no visible text.
func IsBlank(fragment string) bool {
	return strings.TrimSpace(plainText(fragment)) == ""
}
