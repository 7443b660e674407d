package backend

import (
	"fmt"
	"html/template"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wansing/moderation/core"
	"github.com/wansing/moderation/util"
	"gitlab.com/golang-commonmark/markdown"
)

var markdownParser *markdown.Markdown = markdown.New(markdown.HTML(false), markdown.Linkify(true), markdown.Typographer(true), markdown.MaxNesting(10))

// RenderValue renders a field value for the diff view. Markdown is rendered without raw HTML, everything else is escaped.
func RenderValue(fieldType core.FieldType, value interface{}) template.HTML {
	switch fieldType {
	case core.Markdown:
		s, _ := value.(string)
		return template.HTML(markdownParser.RenderToString([]byte(s)))
	default:
		return template.HTML(template.HTMLEscapeString(FormatValue(value)))
	}
}

// FormatValue returns a one-line representation of a snapshot value. It is also used to fill form inputs.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		var items = make([]string, len(v))
		for i := range v {
			items[i] = FormatValue(v[i])
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// ParseValue is the inverse of FormatValue for form input.
func ParseValue(fieldType core.FieldType, input string) (interface{}, error) {
	switch fieldType {
	case core.Number:
		input = strings.TrimSpace(input)
		if input == "" {
			return float64(0), nil
		}
		f, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%q is not a finite number", input)
		}
		return f, nil
	case core.Bool:
		return input == "true" || input == "on", nil
	case core.List:
		var list = []interface{}{}
		for _, item := range strings.Split(input, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		return list, nil
	default:
		return input, nil
	}
}

func StatusBadge(e *core.Entity) template.HTML {

	if e == nil {
		return template.HTML(`<span class="alert-inline alert-secondary" title="not moderated">&ndash;</span>`)
	}

	var draft string
	if e.State == core.Draft {
		draft = ` <span class="alert-inline alert-secondary">draft</span>`
	}

	switch e.Status {
	case core.Approved:
		return template.HTML(`<span class="alert-inline alert-success" title="approved">&#10003;</span>` + draft)
	case core.Rejected:
		return template.HTML(`<span class="alert-inline alert-danger" title="rejected">&#10007;</span>` + draft)
	default:
		return template.HTML(`<span class="alert-inline alert-warning" title="pending">&hellip;</span>` + draft)
	}
}

// Summary returns a plain text excerpt of the first text or markdown fields of an object.
func Summary(policy *core.Policy, fields core.Snapshot) string {

	var names []string
	if policy != nil {
		for _, field := range policy.Schema {
			if field.Type == core.Text || field.Type == core.Markdown {
				names = append(names, field.Name)
			}
		}
	} else {
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var b strings.Builder
	for _, name := range names {
		s, ok := fields[name].(string)
		if !ok || s == "" {
			continue
		}
		if policy != nil {
			if field, _ := policy.Schema.Get(name); field.Type == core.Markdown {
				s = markdownParser.RenderToString([]byte(s))
			}
		}
		b.WriteString(s)
		b.WriteString("\n")
	}

	return util.PlainText(strings.NewReader(b.String()), 120)
}
