package extraction

import (
	"fmt"
	"strings"

	"permitflow/internal/domain"
)

type keywordSet struct {
	label    string
	keywords []string
}

// keywords lists, per document kind, the terms at least one of which must appear in the text.
var keywords = map[domain.DocumentKind]keywordSet{
	domain.DocumentKindClearance:  {label: "barangay clearance", keywords: []string{"barangay", "clearance"}},
	domain.DocumentKindTaxReceipt: {label: "business tax receipt", keywords: []string{"tax", "receipt", "business"}},
	domain.DocumentKindFireCert:   {label: "fire safety inspection certificate", keywords: []string{"fire", "safety", "fsic"}},
	domain.DocumentKindIdentity:   {label: "government-issued ID", keywords: []string{"id", "license", "passport"}},
}

// Classify decides whether text looks like a document of the given kind by keyword presence.
// Unknown kinds are never valid.
func Classify(kind domain.DocumentKind, text string) (bool, string) {
	set, ok := keywords[kind]
	if !ok {
		return false, "This document type cannot be checked automatically."
	}
	lower := strings.ToLower(text)
	for _, kw := range set.keywords {
		if strings.Contains(lower, kw) {
			return true, fmt.Sprintf("The document appears to be a valid %s.", set.label)
		}
	}
	if strings.TrimSpace(lower) == "" {
		return false, fmt.Sprintf("No readable text was found. Please upload a clearer copy of the %s.", set.label)
	}
	return false, fmt.Sprintf("The document does not look like a %s. Please check that you uploaded the right file.", set.label)
}
