package testcase

import (
	"regexp"
	"strings"
)

// The backend returns generated test cases as LLM free text. Two layouts have
// been seen in the wild:
//
//	---
//
//	**test_id:** TC001
//	**priority:** High
//	**summary:** Patient login with valid credentials
//	**test_steps:**
//	1. Open the portal
//	2. Submit credentials
//	**expected_result:** Dashboard is shown
//
// and the same keys without bold markers or separators. Both are handled by a
// single convention: every line whose key is test_id opens a new block.

// keyLinePattern matches `key: value` lines, tolerating a list bullet and
// markdown bold around the key or right after the colon.
var keyLinePattern = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\*{0,2}\s*([A-Za-z][A-Za-z0-9_ ]*?)\s*\*{0,2}\s*:\s*\*{0,2}\s*(.*?)\s*$`)

// stepPrefixPattern strips "1. ", "2) " and bullet prefixes from step lines.
var stepPrefixPattern = regexp.MustCompile(`^(?:\d+\s*[.)]|[-*+])\s*`)

// listItemPattern matches lines that open a numbered or bulleted list item.
var listItemPattern = regexp.MustCompile(`^\s*(?:\d+\s*[.)]\s*|[-*+]\s+)\S`)

// separatorPattern matches markdown horizontal rules.
var separatorPattern = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)

const (
	keyID             = "test_id"
	keyPriority       = "priority"
	keySummary        = "summary"
	keyTitle          = "title"
	keyDescription    = "description"
	keyExpectedResult = "expected_result"
	keyType           = "type"
	keySteps          = "test_steps"
)

// keyAliases folds the spellings seen across backend versions onto one key.
var keyAliases = map[string]string{
	"test_id":          keyID,
	"testid":           keyID,
	"priority":         keyPriority,
	"summary":          keySummary,
	"title":            keyTitle,
	"description":      keyDescription,
	"expected_result":  keyExpectedResult,
	"expected_results": keyExpectedResult,
	"type":             keyType,
	"test_type":        keyType,
	"test_steps":       keySteps,
	"steps":            keySteps,
}

// Parse extracts test cases from a raw backend response. Blocks that lack an
// id, a title, at least one step or an expected result are dropped. The
// result keeps the input order and is never nil.
func Parse(raw string) []Record {
	records := make([]Record, 0)

	var current *block
	flush := func() {
		if current == nil {
			return
		}
		if rec := current.record(); rec.Valid() {
			records = append(records, rec)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")

		if separatorPattern.MatchString(line) {
			if current != nil {
				current.open = ""
			}
			continue
		}

		// Inside a step list a list item is a step even when it reads like
		// "- Type: admin".
		if current != nil && current.open == keySteps && listItemPattern.MatchString(line) {
			current.continueWith(line)
			continue
		}

		key, value, isKey := parseKeyLine(line)
		if isKey && key == keyID {
			flush()
			current = newBlock()
		}
		if current == nil {
			continue
		}

		if isKey {
			current.set(key, value)
			continue
		}
		if isBoldKeyLine(line) {
			// An unrecognised bold key still ends whatever list was open.
			current.open = ""
			continue
		}
		current.continueWith(line)
	}
	flush()

	return records
}

// parseKeyLine returns the canonical key and value of a recognised key line.
func parseKeyLine(line string) (string, string, bool) {
	m := keyLinePattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	name = strings.ReplaceAll(name, " ", "_")

	key, ok := keyAliases[name]
	if !ok {
		return "", "", false
	}
	value := strings.TrimSpace(strings.TrimSuffix(m[2], "**"))
	return key, value, true
}

// isBoldKeyLine reports lines such as "**preconditions:** ..." that use the
// key layout but carry a key this parser does not know.
func isBoldKeyLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "**") && keyLinePattern.MatchString(trimmed)
}

// block accumulates the fields of one candidate test case.
type block struct {
	fields map[string]string
	steps  []string
	// open is the key still accepting continuation lines: test_steps, or a
	// scalar key whose value was left empty on its own line.
	open string
}

func newBlock() *block {
	return &block{fields: make(map[string]string)}
}

func (b *block) set(key, value string) {
	b.open = ""
	if key == keySteps {
		b.open = keySteps
		if value != "" {
			b.addStep(value)
		}
		return
	}
	if value == "" {
		b.open = key
		return
	}
	b.fields[key] = value
}

func (b *block) continueWith(line string) {
	text := strings.TrimSpace(line)
	if b.open == "" {
		return
	}
	if text == "" {
		// Blank lines may sit between steps but end a wrapped scalar value.
		if b.open != keySteps {
			b.open = ""
		}
		return
	}
	if b.open == keySteps {
		b.addStep(text)
		return
	}
	if prev := b.fields[b.open]; prev != "" {
		b.fields[b.open] = prev + " " + text
		return
	}
	b.fields[b.open] = text
}

func (b *block) addStep(text string) {
	step := strings.TrimSpace(stepPrefixPattern.ReplaceAllString(strings.TrimSpace(text), ""))
	if step != "" {
		b.steps = append(b.steps, step)
	}
}

func (b *block) record() Record {
	summary := b.fields[keySummary]

	title := b.fields[keyTitle]
	if title == "" {
		title = summary
	}
	description := b.fields[keyDescription]
	if description == "" {
		description = summary
	}
	typ := b.fields[keyType]
	if typ == "" {
		typ = DefaultType
	}

	return Record{
		ID:              b.fields[keyID],
		Title:           title,
		Description:     description,
		Priority:        NormalizePriority(b.fields[keyPriority]),
		Type:            typ,
		Steps:           b.steps,
		ExpectedResults: b.fields[keyExpectedResult],
	}
}
