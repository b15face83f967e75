package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nara-digital/newsingest/internal/textutil"
)

// SystemInstruction describes the allowed categories, the output shape and the target languages.
func SystemInstruction(categories, languages []string, maxKeyPoints int) string {
	var b strings.Builder
	b.WriteString("You are an editorial assistant for a Sri Lankan ocean, fisheries and coastal news service.\n")
	b.WriteString("The user sends one news article as JSON. Reply with a single JSON object and nothing else, with these fields:\n")
	b.WriteString(`- "summary": a neutral English summary of 2-3 sentences, at most 400 characters.` + "\n")
	if len(categories) > 0 {
		fmt.Fprintf(&b, `- "category": exactly one of: %s.`+"\n", strings.Join(categories, ", "))
	} else {
		b.WriteString(`- "category": a short topical category.` + "\n")
	}
	fmt.Fprintf(&b, `- "keyPoints": at most %d short factual statements taken from the article.`+"\n", maxKeyPoints)
	b.WriteString(`- "tags": 3 to 6 lower-case topical tags.` + "\n")
	fmt.Fprintf(&b, `- "translations": an object keyed by language code (%s); each value is {"title": ..., "summary": ...} `+
		"with the article title and your summary translated into that language.\n", strings.Join(languages, ", "))
	b.WriteString("Keep names of people, organisations and vessels untranslated. Do not add facts that are not in the article.")
	return b.String()
}

// BuildPrompt encodes the payload as the user message, with the content cut to maxRunes.
func BuildPrompt(p Payload, languages []string, maxRunes int) (string, error) {
	if textutil.Truncate(p.Content, maxRunes) != p.Content {
		p.Content = textutil.Truncate(p.Content, maxRunes) + " [TRUNCATED]"
	}

	body, err := json.Marshal(struct {
		Article         Payload  `json:"article"`
		TargetLanguages []string `json:"targetLanguages"`
	}{p, languages})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(body), nil
}
