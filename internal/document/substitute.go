package document

import (
	"regexp"
)

// placeholderPattern matches "[field_name]" tokens.
var placeholderPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Emphasis styles the runs that receive selected placeholder values.
type Emphasis struct {
	// Fields are the placeholder names to emphasize.
	Fields map[string]bool

	// Size is the minimum font size of an emphasized run. Zero keeps
	// the run's size.
	Size float64
}

// Substitute replaces every "[name]" token whose name is a key of values,
// in paragraphs and in table cells. Matching is case-sensitive and exact;
// tokens without a value are left untouched. It returns the number of
// tokens replaced. A document without matching tokens is not modified.
func Substitute(doc *Document, values map[string]string, emphasis Emphasis) int {
	count := 0
	doc.eachParagraph(func(p *Paragraph) {
		count += substituteParagraph(p, values, emphasis)
	})
	return count
}

func substituteParagraph(p *Paragraph, values map[string]string, emphasis Emphasis) int {
	count := 0
	for i := range p.Runs {
		count += substituteRun(&p.Runs[i], values, emphasis)
	}

	// A token split over several runs only shows up in the joined text.
	// Collapse the paragraph into its first run and replace there.
	if len(p.Runs) > 1 && hasKnownPlaceholder(p.Text(), values) {
		merged := p.Runs[0]
		merged.Text = p.Text()
		p.Runs = []Run{merged}
		count += substituteRun(&p.Runs[0], values, emphasis)
	}
	return count
}

func substituteRun(r *Run, values map[string]string, emphasis Emphasis) int {
	count := 0
	emphasize := false
	r.Text = placeholderPattern.ReplaceAllStringFunc(r.Text, func(token string) string {
		name := token[1 : len(token)-1]
		value, ok := values[name]
		if !ok {
			return token
		}
		count++
		if emphasis.Fields[name] {
			emphasize = true
		}
		return value
	})

	if emphasize {
		r.Bold = true
		if r.Size < emphasis.Size {
			r.Size = emphasis.Size
		}
	}
	return count
}

func hasKnownPlaceholder(text string, values map[string]string) bool {
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := values[m[1]]; ok {
			return true
		}
	}
	return false
}
