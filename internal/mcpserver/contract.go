package mcpserver

// UsageGuide describes how notes, tags and comments behave, for LLM
// clients that file things into the inbox.
const UsageGuide = `# Inbox usage

The inbox holds short free-text notes. Each note has:

- ` + "`id`" + `: assigned by the server, never reused.
- ` + "`content`" + `: plain text, must not be blank. Surrounding whitespace is trimmed.
- ` + "`tags`" + `: an ordered list of free-form strings. Order is kept as given.
- ` + "`created_at`" + ` / ` + "`updated_at`" + `: RFC 3339 UTC.

## Tags

Two kinds of tag exist and they are not linked:

1. **Note tags** are whatever strings you attach to a note. Filtering with
   ` + "`list_notes`" + ` matches a tag exactly and case-sensitively: ` + "`work`" + ` does not
   match ` + "`Work`" + ` or ` + "`workshop`" + `.
2. **Catalog tags** form a tree maintained by the owner (for example
   ` + "`work/urgent`" + `). Browse it with ` + "`get_child_tags`" + ` and ` + "`search_tags`" + `.
   Search matches the start of a tag name and also returns everything below
   each match.

Prefer reusing existing note tags (` + "`list_tags`" + `) over inventing near-duplicates.
Catalog paths make good note tags.

## Comments

Comments hang off one note and are listed oldest first. Deleting a note
deletes its comments. ` + "`add_comment`" + ` with ` + "`as_note: true`" + ` also files the
comment text as a new untagged note.

## Listing

` + "`list_notes`" + ` returns newest first, 50 by default and at most 1000.
` + "`created_after`" + ` is inclusive, ` + "`created_before`" + ` is exclusive. To page back,
pass the oldest ` + "`created_at`" + ` you have as ` + "`created_before`" + `.
`
