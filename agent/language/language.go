// Package language provides the deterministic stopword heuristic shared by
// the router (fallback detection) and the synthesizer (mismatch check). Both
// sides must use the same heuristic so the language-fidelity guarantee is
// checkable.
package language

import (
	"strings"
	"unicode"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
)

var portugueseMarkers = map[string]struct{}{
	"que": {}, "quem": {}, "qual": {}, "quais": {}, "quanto": {}, "quantos": {},
	"onde": {}, "como": {}, "por": {}, "para": {}, "com": {}, "sem": {},
	"em": {}, "de": {}, "do": {}, "da": {}, "dos": {}, "das": {},
	"no": {}, "na": {}, "nos": {}, "nas": {}, "ao": {}, "aos": {},
	"um": {}, "uma": {}, "os": {}, "as": {},
	"meu": {}, "minha": {}, "meus": {}, "minhas": {},
	"seu": {}, "sua": {}, "seus": {}, "suas": {},
	"é": {}, "são": {}, "está": {}, "estão": {}, "estou": {}, "foi": {}, "foram": {},
	"tem": {}, "têm": {}, "tenho": {}, "temos": {},
	"você": {}, "não": {}, "sim": {}, "mostra": {}, "mostre": {},
	"saldo": {}, "conta": {}, "cartão": {}, "transações": {}, "taxa": {}, "taxas": {},
	"bloqueada": {}, "bloqueado": {}, "suficiente": {}, "valor": {}, "preço": {},
}

var englishMarkers = map[string]struct{}{
	"the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"a": {}, "an": {}, "of": {}, "to": {}, "for": {}, "with": {}, "without": {},
	"my": {}, "your": {}, "you": {}, "i": {}, "me": {}, "we": {},
	"what": {}, "which": {}, "who": {}, "where": {}, "how": {}, "why": {}, "when": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "do": {}, "does": {},
	"balance": {}, "account": {}, "card": {}, "transactions": {}, "fee": {}, "fees": {},
	"blocked": {}, "sufficient": {}, "insufficient": {}, "price": {}, "afford": {},
	"show": {}, "this": {}, "that": {}, "not": {}, "and": {},
}

// Detect classifies text by counting whole-word language markers. Ties and
// empty input default to Portuguese, the product's home market.
func Detect(text string) contractx.Language {
	pt, en := 0, 0
	for _, word := range tokenize(text) {
		if _, ok := portugueseMarkers[word]; ok {
			pt++
		}
		if _, ok := englishMarkers[word]; ok {
			en++
		}
	}
	if en > pt {
		return contractx.LanguageEnglish
	}
	return contractx.LanguagePortuguese
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
