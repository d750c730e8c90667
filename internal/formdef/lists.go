package formdef

import "strings"

// Nationalities is the closed list offered for nationality fields.
var Nationalities = []string{
	"Filipino", "American", "Australian", "British", "Canadian", "Chinese", "Indian",
	"Indonesian", "Japanese", "Korean", "Malaysian", "Singaporean", "Taiwanese", "Thai",
	"Vietnamese", "Other",
}

// Barangays is the closed list of barangays within the city.
var Barangays = []string{
	"Bagong Silang", "Bagumbong", "Camarin", "Deparo", "Grace Park East", "Grace Park West",
	"Kaybiga", "Llano", "Maypajo", "Pangarap Village", "Sangandaan", "Santa Quiteria",
	"Tala", "Talipapa", "Urduja",
}

// SpecialPermitTypes is the closed list of special/temporary permit categories.
var SpecialPermitTypes = []string{
	"Event", "Temporary Stall", "Bazaar", "Promotional Activity", "Filming", "Motorcade",
}

var lists = map[string][]string{
	"nationalities":        Nationalities,
	"barangays":            Barangays,
	"special_permit_types": SpecialPermitTypes,
}

// List returns a closed list by name.
func List(name string) ([]string, bool) {
	l, ok := lists[name]
	return l, ok
}

// InList reports whether value is a member of the named list, ignoring case and surrounding space.
func InList(name, value string) bool {
	l, ok := lists[name]
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	for _, item := range l {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
