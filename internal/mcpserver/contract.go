package mcpserver

// EntryFormatContract describes how a journal entry file is laid out, for
// assistants that write entries.
const EntryFormatContract = `# Daybook Entry Format

Each journal entry is one Markdown file in the journal directory.

## Structure

` + "```" + `markdown
# Journal Entry for May 1, 2024

First paragraph of the day. The first non-empty line after the title is
used as the preview in the entry list.

## Morning

- Walked to the lake
- **Saw a heron**

## Evening

Short reflection, *in italics* where it helps.
` + "```" + `

## Rules

1. **The first line is the title**, written as a level-one heading (` + "`" + `# ` + "`" + `).
2. Use ` + "`" + `##` + "`" + ` and ` + "`" + `###` + "`" + ` for sections. Do not add a second ` + "`" + `#` + "`" + ` heading.
3. Lists use ` + "`" + `- ` + "`" + ` or ` + "`" + `1. ` + "`" + `; emphasis uses ` + "`" + `**bold**` + "`" + ` and ` + "`" + `*italic*` + "`" + `.
4. **No HTML.** The editor only round-trips headings, paragraphs, lists, bold and italic.
5. Frontmatter is optional. When present it may set ` + "`" + `title` + "`" + `, ` + "`" + `date` + "`" + ` (YYYY-MM-DD)
   and ` + "`" + `tags` + "`" + `, and overrides what is derived from the heading and filename.
6. File names are ` + "`" + `YYYY-MM-DD-HHMMSS-entry.md` + "`" + ` and are assigned by ` + "`" + `new_entry` + "`" + `.
   Never invent one.
7. ` + "`" + `update_journal` + "`" + ` replaces the whole file. Read the entry first and send the
   complete new text.
`
