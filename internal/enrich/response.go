package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/textutil"
)

const resultSchemaJSON = `{
  "type": "object",
  "required": ["summary", "category"],
  "properties": {
    "summary":   {"type": "string"},
    "category":  {"type": "string"},
    "keyPoints": {"type": ["array", "null"], "items": {"type": "string"}},
    "tags":      {"type": ["array", "null"], "items": {"type": "string"}},
    "translations": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": "object",
        "properties": {
          "title":   {"type": "string"},
          "summary": {"type": "string"}
        }
      }
    }
  }
}`

var resultSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resultSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("enrich: invalid result schema: %v", err))
	}
	return s
}()

// ParseResult decodes model text into an untyped value, validates it against
// the result schema and coerces it into a Result.
func ParseResult(text string, maxKeyPoints int) (*Result, error) {
	text = cleanJSONBlock(text)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	res, err := resultSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}

	obj := doc.(map[string]any)
	out := &Result{
		Summary:      textutil.NormalizeWhitespace(stringField(obj, "summary")),
		Category:     textutil.NormalizeWhitespace(stringField(obj, "category")),
		KeyPoints:    stringList(obj["keyPoints"]),
		Tags:         stringList(obj["tags"]),
		Translations: translations(obj["translations"]),
	}
	if maxKeyPoints > 0 && len(out.KeyPoints) > maxKeyPoints {
		out.KeyPoints = out.KeyPoints[:maxKeyPoints]
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// stringList drops blank entries. Missing or null values give an empty, non-nil slice.
func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, _ := it.(string)
		if s = textutil.NormalizeWhitespace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func translations(v any) map[string]article.Translation {
	obj, _ := v.(map[string]any)
	out := make(map[string]article.Translation, len(obj))
	for lang, raw := range obj {
		lang = strings.ToLower(strings.TrimSpace(lang))
		entry, _ := raw.(map[string]any)
		tr := article.Translation{
			Title:   textutil.NormalizeWhitespace(stringField(entry, "title")),
			Summary: textutil.NormalizeWhitespace(stringField(entry, "summary")),
		}
		if lang == "" || (tr.Title == "" && tr.Summary == "") {
			continue
		}
		out[lang] = tr
	}
	return out
}

// cleanJSONBlock removes markdown code fences models sometimes add despite JSON mode.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		if first := strings.TrimSpace(text[:idx]); !strings.ContainsAny(first, "{[ ") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
