package remote

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// LabelPrefix marks issue labels that carry a stage, e.g. "qw-requirement".
const LabelPrefix = "qw-"

// noResponse is what GitHub issue forms write for an empty optional answer.
const noResponse = "_No response_"

// LabelFor returns the issue label for category c.
func LabelFor(c stage.Category) string {
	return LabelPrefix + string(c)
}

// titlePrefix is the prefix the issue form puts in front of new issue titles.
func titlePrefix(c stage.Category) string {
	return "[" + stage.SchemaFor(c).Title + "]"
}

func stageFromLabels(labels []string) (stage.Category, bool) {
	for _, l := range labels {
		name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(l)), LabelPrefix)
		if !ok {
			continue
		}
		if c, err := stage.ParseCategory(name); err == nil {
			return c, true
		}
	}
	return "", false
}

// Harvest builds a record from the answers in an issue created from a qw
// issue form. The stage comes from the issue's qw label, the title from the
// issue title and every other field from the "### <Label>" section of the
// body. The record is linked to the issue but not validated; local fields
// such as internal_id are left unset.
func Harvest(is *Issue) (*stage.Record, error) {
	c, ok := stageFromLabels(is.Labels)
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("issue #%d has no %s<stage> label", is.Number, LabelPrefix))
	}
	r, err := stage.New(c)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(is.Title)
	title = strings.TrimSpace(strings.TrimPrefix(title, titlePrefix(c)))
	if title != "" {
		if err := r.SetString(stage.FieldTitle, title); err != nil {
			return nil, err
		}
	}
	if err := r.SetInt(stage.FieldRemoteID, is.Number); err != nil {
		return nil, err
	}

	sections := ParseSections(is.Body)
	for _, f := range r.Schema().Fields {
		if f.Local || f.Name == stage.FieldTitle {
			continue
		}
		answer, ok := sections[strings.ToLower(f.Label)]
		if !ok || answer == "" || answer == noResponse {
			continue
		}
		if f.Kind == stage.KindInt {
			n, err := strconv.Atoi(strings.TrimPrefix(answer, "#"))
			if err != nil {
				return nil, errors.NewDecodeFailed(fmt.Sprintf("issue #%d: %s: %q is not a number", is.Number, f.Label, answer))
			}
			if err := r.SetInt(f.Name, n); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.SetString(f.Name, answer); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ParseSections splits issue-form markdown into answers keyed by the
// lower-cased text of each top-level "###" heading. Section text is kept
// verbatim apart from surrounding blank space, so blank lines inside an
// answer survive. Headings inside code blocks or quotes are not sections.
func ParseSections(body string) map[string]string {
	src := []byte(strings.ReplaceAll(body, "\r\n", "\n"))
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	type heading struct {
		name       string
		lineStart  int
		contentEnd int
	}
	var headings []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 3 || h.Lines().Len() == 0 {
			continue
		}
		lines := h.Lines()
		first, last := lines.At(0), lines.At(lines.Len()-1)
		headings = append(headings, heading{
			name:       strings.ToLower(strings.TrimSpace(string(lines.Value(src)))),
			lineStart:  lineStart(src, first.Start),
			contentEnd: lineEnd(src, last.Stop),
		})
	}

	sections := make(map[string]string, len(headings))
	for i, h := range headings {
		end := len(src)
		if i+1 < len(headings) {
			end = headings[i+1].lineStart
		}
		if _, dup := sections[h.name]; dup {
			continue
		}
		sections[h.name] = strings.TrimSpace(string(src[h.contentEnd:end]))
	}
	return sections
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the offset just past the newline ending the line containing pos.
func lineEnd(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	if pos < len(src) {
		pos++
	}
	return pos
}
