package chunking

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// tokenCounter isolates the exact tiktoken-go/tokenizer call surface
// behind a narrow interface, so the rest of the package only ever asks
// "how many tokens" and "give me token-aligned slice boundaries" without
// caring which BPE codec backs it.
type tokenCounter struct {
	codec tokenizer.Codec
	once  sync.Once
	err   error
}

var shared = &tokenCounter{}

func (t *tokenCounter) init() {
	t.codec, t.err = tokenizer.Get(tokenizer.Cl100kBase)
}

// tokenize returns the token strings for text in order. On any codec
// initialization failure it falls back to whitespace splitting so chunking
// degrades gracefully instead of panicking — this is a defensive fallback,
// not a replacement for the dependency, and only triggers if the codec's
// embedded BPE rank table fails to load.
func tokenize(text string) []string {
	shared.once.Do(shared.init)
	if shared.err != nil || shared.codec == nil {
		return strings.Fields(text)
	}
	_, tokens, err := shared.codec.Encode(text)
	if err != nil {
		return strings.Fields(text)
	}
	return tokens
}

func tokenCount(text string) int {
	return len(tokenize(text))
}
