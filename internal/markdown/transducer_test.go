package markdown

import (
	"strings"
	"testing"
)

func TestToMarkdown_TitleAndParagraph(t *testing.T) {
	got := ToMarkdown("<h1>Hi</h1><p>Hello</p>")
	if got != "# Hi\n\nHello" {
		t.Errorf("got %q", got)
	}
}

func TestToMarkdown_TitleOnly(t *testing.T) {
	for _, title := range []string{"T", "Journal Entry for May 1, 2024", "Today, ..."} {
		got := ToMarkdown("<h1>" + title + "</h1>")
		if want := "# " + title + "\n\n"; got != want {
			t.Errorf("ToMarkdown(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestToMarkdown_Untitled(t *testing.T) {
	got := ToMarkdown("<p>No heading here</p>")
	if !strings.HasPrefix(got, "# Untitled\n\n") {
		t.Errorf("got %q", got)
	}
	if ToMarkdown("") != "# Untitled\n\n" {
		t.Errorf("empty fragment = %q", ToMarkdown(""))
	}
	if ToMarkdown("<h1> </h1>") != "# Untitled\n\n" {
		t.Errorf("blank heading = %q", ToMarkdown("<h1> </h1>"))
	}
}

func TestToMarkdown_Emphasis(t *testing.T) {
	got := ToMarkdown("<h1>T</h1><p>a <strong>x</strong> and <em>y</em> or <b>z</b> <i>w</i></p>")
	for _, want := range []string{"**x**", "*y*", "**z**", "*w*"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q missing %q", got, want)
		}
	}
	if strings.ContainsAny(got, "<>") {
		t.Errorf("residual tag in %q", got)
	}
}

func TestToMarkdown_Headings(t *testing.T) {
	got := ToMarkdown("<h1>T</h1><h2>Morning</h2><p>coffee</p><h3>Later</h3><p>tea</p>")
	want := "# T\n\n## Morning\n\ncoffee\n\n### Later\n\ntea"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToMarkdown_OnlyFirstH1IsTitle(t *testing.T) {
	got := ToMarkdown("<h1>First</h1><p>a</p><h1>Second</h1>")
	if !strings.HasPrefix(got, "# First\n\n") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "Second") {
		t.Errorf("stray heading text dropped: %q", got)
	}
	if strings.Count(got, "# ") != 1 {
		t.Errorf("second h1 should not become a heading: %q", got)
	}
}

func TestToMarkdown_Lists(t *testing.T) {
	got := ToMarkdown("<h1>T</h1><ul><li>milk</li><li>eggs</li></ul><ol><li>wake</li><li>run</li></ol>")
	want := "# T\n\n- milk\n- eggs\n\n1. wake\n2. run"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToMarkdown_LineBreaks(t *testing.T) {
	got := ToMarkdown("<h1>T</h1><p>one<br>two<br/>three</p>")
	if got != "# T\n\none\ntwo\nthree" {
		t.Errorf("got %q", got)
	}
}

func TestToMarkdown_CollapsesBlankRuns(t *testing.T) {
	got := ToMarkdown("<h1>T</h1><p>a</p><p></p><p></p><br><br><p>b</p>")
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank run not collapsed: %q", got)
	}
	if got != "# T\n\na\n\nb" {
		t.Errorf("got %q", got)
	}
}

func TestToMarkdown_StripsAttributesAndUnknownTags(t *testing.T) {
	got := ToMarkdown(`<h1 class="title">T</h1><p style="x">see <span>this</span> &amp; that</p><script>alert(1)</script>`)
	if got != "# T\n\nsee this & that" {
		t.Errorf("got %q", got)
	}
}

func TestToMarkdown_ServerRenderedRoundTrip(t *testing.T) {
	r := NewRenderer()
	src := "# Day\n\nWent **out**.\n\n- a\n- b\n\n1. x\n2. y"
	html, err := r.Render([]byte(src))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := ToMarkdown(html); got != src {
		t.Errorf("round trip:\n got %q\nwant %q", got, src)
	}
}

func TestToMarkdown_Deterministic(t *testing.T) {
	in := "<h1>T</h1><p>x <em>y</em></p><ul><li>z</li></ul>"
	if ToMarkdown(in) != ToMarkdown(in) {
		t.Error("output differs between calls")
	}
}

func TestIsBlank(t *testing.T) {
	for _, in := range []string{"", "  ", "<p></p>", "<p><br></p>", "<p>&nbsp;</p>"} {
		if !IsBlank(in) {
			t.Errorf("IsBlank(%q) = false", in)
		}
	}
	if IsBlank("<h1>Hi</h1>") {
		t.Error("heading should not be blank")
	}
}
