package importer

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateSource records where a parsed file's entry time came from.
type DateSource string

const (
	DateFromFrontmatter DateSource = "frontmatter"
	DateFromFilename    DateSource = "filename"
	DateFromModTime     DateSource = "mtime"
)

// ParsedFile is one Markdown file turned into entry content.
type ParsedFile struct {
	// RelativePath is the path relative to the import root directory.
	RelativePath string

	// Title is the frontmatter title or first H1, if any.
	Title string

	// Content is the entry text: frontmatter stripped, wiki links flattened.
	Content string

	// CreatedAt is the effective entry time.
	CreatedAt time.Time

	// DateSource says which of frontmatter, filename or mtime set CreatedAt.
	DateSource DateSource
}

// ParseJournalFile parses a single Markdown file. The entry time is taken
// from the frontmatter date, then a YYYY-MM-DD file name (daily notes), then
// modTime. Dates without a zone are read in loc.
func ParseJournalFile(content []byte, relativePath string, modTime time.Time, loc *time.Location) (*ParsedFile, error) {
	if loc == nil {
		loc = time.Local
	}

	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("frontmatter parse error in %s: %w", relativePath, err)
	}

	pf := &ParsedFile{RelativePath: relativePath}

	switch {
	case !extractTimestamp(fm, loc).IsZero():
		pf.CreatedAt, pf.DateSource = extractTimestamp(fm, loc), DateFromFrontmatter
	case !dateFromFilename(relativePath, loc).IsZero():
		pf.CreatedAt, pf.DateSource = dateFromFilename(relativePath, loc), DateFromFilename
	default:
		pf.CreatedAt, pf.DateSource = modTime, DateFromModTime
	}

	pf.Title = extractString(fm, "title", "")
	if pf.Title == "" {
		pf.Title = extractH1(body)
	}
	pf.Content = buildContent(pf.Title, StripWikiLinks(body))
	return pf, nil
}

// splitFrontmatter separates YAML frontmatter (between --- delimiters) from
// the Markdown body. Returns empty map and full text when no frontmatter found.
func splitFrontmatter(text string) (map[string]interface{}, string, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return map[string]interface{}{}, text, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		// No closing delimiter - treat entire file as body.
		return map[string]interface{}{}, text, nil
	}

	fmText := strings.Join(lines[1:closeIdx], "\n")
	fm := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return map[string]interface{}{}, text, fmt.Errorf("invalid YAML: %w", err)
	}

	body := strings.Join(lines[closeIdx+1:], "\n")
	return fm, body, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// extractTimestamp reads a date field from frontmatter and attempts several
// common layouts.
func extractTimestamp(fm map[string]interface{}, loc *time.Location) time.Time {
	for _, key := range []string{"date", "created", "created_at"} {
		raw, ok := fm[key]
		if !ok {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case time.Time:
			return v
		default:
			s = fmt.Sprintf("%v", v)
		}
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// dailyNoteRe matches a YYYY-MM-DD prefix in a file name.
var dailyNoteRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// dateFromFilename reads the date of a daily note such as "2024-03-14.md".
func dateFromFilename(rel string, loc *time.Location) time.Time {
	m := dailyNoteRe.FindStringSubmatch(filepath.Base(rel))
	if m == nil {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", m[1], loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// extractString pulls a string value from frontmatter by key with a default.
func extractString(fm map[string]interface{}, key, defaultVal string) string {
	v, ok := fm[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return defaultVal
}

// extractH1 returns the text of the first ATX heading (# ...) found in the body.
func extractH1(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// buildContent prepends the title as a heading unless the body already
// opens with one.
func buildContent(title, body string) string {
	body = strings.TrimSpace(body)
	if title == "" || strings.HasPrefix(body, "# ") {
		return body
	}
	if body == "" {
		return "# " + title
	}
	return "# " + title + "\n\n" + body
}
