// Package caption turns recognized utterances into wire captions and fans
// them out to viewers, history, export, and speech synthesis.
package caption

import (
	"strings"
	"sync/atomic"
)

// placeholderTick is shared by every assembler so concurrent interim captions
// across calls rotate through the same dot cycle.
var placeholderTick atomic.Uint64

// Placeholder returns the rotating "Translating" marker shown in target
// language slots while the real translation is pending. Successive calls
// cycle through zero to three trailing dots.
func Placeholder() string {
	n := placeholderTick.Add(1)
	return "Translating" + strings.Repeat(".", int(n%4))
}

// Assembler builds the per-language text map of a caption.
type Assembler struct {
	targetLangs []string
}

func NewAssembler(targetLangs []string) *Assembler {
	return &Assembler{targetLangs: targetLangs}
}

// Build produces the per-language text map of a caption. The source slot is
// always overwritten with the recognized text so the speaker's own words are
// never a round-tripped translation. Configured targets missing from
// translations get the rotating placeholder; pass nil translations for an
// interim caption.
func (a *Assembler) Build(sourceLang, sourceText string, translations map[string]string) map[string]string {
	out := make(map[string]string, len(a.targetLangs)+1)
	for lang, t := range translations {
		out[lang] = t
	}
	out[sourceLang] = sourceText

	marker := ""
	for _, lang := range a.targetLangs {
		if _, ok := out[lang]; ok {
			continue
		}
		if marker == "" {
			marker = Placeholder()
		}
		out[lang] = marker
	}
	return out
}
