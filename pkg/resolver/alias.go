package resolver

import (
	"strings"

	"github.com/chronofact/chronofact/pkg/utils"
)

// pronouns and other anaphora that never identify an entity on their own.
var pronouns = map[string]bool{
	"he": true, "she": true, "it": true, "they": true, "them": true,
	"him": true, "her": true, "his": true, "hers": true, "its": true,
	"their": true, "theirs": true, "we": true, "us": true, "our": true,
	"i": true, "you": true, "this": true, "that": true, "these": true,
	"those": true, "who": true, "which": true,
}

// genericHeads are nouns that make an article phrase non-identifying,
// as in "the company" or "a spokesperson".
var genericHeads = map[string]bool{
	"company": true, "corporation": true, "firm": true, "organization": true,
	"organisation": true, "group": true, "agency": true, "startup": true,
	"business": true, "team": true, "person": true, "man": true, "woman": true,
	"spokesperson": true, "official": true, "executive": true, "employee": true,
	"city": true, "country": true, "state": true, "place": true, "product": true,
	"device": true, "system": true, "thing": true, "entity": true,
}

// commonGivenNames covers bare first names that are too ambiguous to act
// as aliases unless they match the entity's own leading token. Abbreviations
// like "MSFT" deliberately stay off this list.
var commonGivenNames = map[string]bool{
	"james": true, "john": true, "robert": true, "michael": true, "david": true,
	"william": true, "richard": true, "joseph": true, "thomas": true, "charles": true,
	"mary": true, "patricia": true, "jennifer": true, "linda": true, "elizabeth": true,
	"barbara": true, "susan": true, "jessica": true, "sarah": true, "karen": true,
	"daniel": true, "matthew": true, "anthony": true, "mark": true, "paul": true,
	"steven": true, "andrew": true, "kenneth": true, "joshua": true, "kevin": true,
	"brian": true, "george": true, "timothy": true, "ronald": true, "edward": true,
	"emily": true, "ashley": true, "kimberly": true, "donna": true, "michelle": true,
	"carol": true, "amanda": true, "melissa": true, "deborah": true, "stephanie": true,
	"alice": true, "bob": true, "peter": true, "satya": true, "bill": true,
}

// admissibleAlias reports whether an alias text can identify the named
// entity. The filter errs on the side of dropping: a lost alias costs a
// fuzzy lookup later, a bad alias corrupts identity resolution.
func admissibleAlias(alias, entityName string) bool {
	normalized := utils.NormalizeText(alias)
	if normalized == "" {
		return false
	}
	tokens := strings.Fields(normalized)

	if len(tokens) == 1 {
		if pronouns[tokens[0]] {
			return false
		}
		if commonGivenNames[tokens[0]] {
			// A bare given name is admissible only when it is the
			// entity's own leading token, as "Satya" for "Satya Nadella".
			nameTokens := strings.Fields(utils.NormalizeText(entityName))
			return len(nameTokens) > 0 && nameTokens[0] == tokens[0]
		}
		return true
	}

	// "the company", "an official" and the like.
	if len(tokens) == 2 && isArticle(tokens[0]) && genericHeads[tokens[1]] {
		return false
	}
	return true
}

func isArticle(token string) bool {
	return token == "the" || token == "a" || token == "an"
}
