package division

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry binds a routing label to the storage name of its index.
type Entry struct {
	Label string `yaml:"label" json:"label"`
	Store string `yaml:"store" json:"store"`
}

// Vocabulary is the closed set of division labels. Routing validation and
// index naming both key off the same Vocabulary value.
type Vocabulary struct {
	entries []Entry
	byLabel map[string]int
	byStore map[string]int
}

// NewVocabulary validates entries and builds lookup tables.
func NewVocabulary(entries []Entry) (*Vocabulary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	v := &Vocabulary{
		entries: make([]Entry, 0, len(entries)),
		byLabel: make(map[string]int, len(entries)),
		byStore: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		label := strings.TrimSpace(e.Label)
		store := SafeName(strings.TrimSpace(e.Store))
		if label == "" {
			return nil, fmt.Errorf("entry %d: empty label", i)
		}
		if store == "" {
			store = SafeName(label)
		}
		if _, dup := v.byLabel[label]; dup {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		if _, dup := v.byStore[store]; dup {
			return nil, fmt.Errorf("duplicate store %q (label %q)", store, label)
		}
		v.byLabel[label] = len(v.entries)
		v.byStore[store] = len(v.entries)
		v.entries = append(v.entries, Entry{Label: label, Store: store})
	}
	return v, nil
}

// MustVocabulary is NewVocabulary for static tables.
func MustVocabulary(entries []Entry) *Vocabulary {
	v, err := NewVocabulary(entries)
	if err != nil {
		panic(err)
	}
	return v
}

// Entries returns the vocabulary in configuration order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Labels returns all labels in configuration order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.Label
	}
	return out
}

func (v *Vocabulary) Len() int { return len(v.entries) }

// Contains reports whether label is part of the vocabulary.
func (v *Vocabulary) Contains(label string) bool {
	_, ok := v.byLabel[label]
	return ok
}

// StoreFor returns the storage name bound to label.
func (v *Vocabulary) StoreFor(label string) (string, bool) {
	i, ok := v.byLabel[label]
	if !ok {
		return "", false
	}
	return v.entries[i].Store, true
}

// LabelForStore is the reverse of StoreFor.
func (v *Vocabulary) LabelForStore(store string) (string, bool) {
	i, ok := v.byStore[store]
	if !ok {
		return "", false
	}
	return v.entries[i].Label, true
}

// Unknown returns the labels that are not part of the vocabulary.
func (v *Vocabulary) Unknown(labels []string) []string {
	var out []string
	for _, l := range labels {
		if !v.Contains(l) {
			out = append(out, l)
		}
	}
	return out
}

var unsafeRun = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// SafeName collapses every run of non-word characters to a single underscore.
func SafeName(s string) string {
	return unsafeRun.ReplaceAllString(s, "_")
}

// DefaultEntries is the vocabulary for the FY2024 consolidated and further
// consolidated appropriations acts.
var DefaultEntries = []Entry{
	{"MILITARY CONSTRUCTION, VETERANS AFFAIRS, AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_A_MILITARY_CONSTRUCTION_VETERANS_AFFAIRS_AND_RELATED_AGENCIES"},
	{"AGRICULTURE, RURAL DEVELOPMENT, FOOD AND DRUG ADMINISTRATION, AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_B_AGRICULTURE_RURAL_DEVELOPMENT_FOOD_AND_DRUG_ADMINISTRATION_AND_RELATED_AGENCIES"},
	{"COMMERCE, JUSTICE, SCIENCE, AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_C_COMMERCE_JUSTICE_SCIENCE_AND_RELATED_AGENCIES"},
	{"ENERGY AND WATER DEVELOPMENT AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_D_ENERGY_AND_WATER_DEVELOPMENT_AND_RELATED_AGENCIES"},
	{"DEPARTMENT OF THE INTERIOR, ENVIRONMENT, AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_E_DEPARTMENT_OF_THE_INTERIOR_ENVIRONMENT_AND_RELATED_AGENCIES"},
	{"TRANSPORTATION, HOUSING AND URBAN DEVELOPMENT, AND RELATED AGENCIES", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_F_TRANSPORTATION_HOUSING_AND_URBAN_DEVELOPMENT_AND_RELATED_AGENCIES"},
	{"OTHER MATTERS", "Consolidated_Appropriations_Act_2024_Public_Law_html_Division_G_OTHER_MATTERS"},
	{"DEPARTMENT OF DEFENSE", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_A_DEPARTMENT_OF_DEFENSE"},
	{"FINANCIAL SERVICES AND GENERAL GOVERNMENT", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_B_FINANCIAL_SERVICES_AND_GENERAL_GOVERNMENT"},
	{"DEPARTMENT OF HOMELAND SECURITY", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_C_DEPARTMENT_OF_HOMELAND_SECURITY"},
	{"DEPARTMENTS OF LABOR, HEALTH AND HUMAN SERVICES, AND EDUCATION, AND RELATED AGENCIES", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_D_DEPARTMENTS_OF_LABOR_HEALTH_AND_HUMAN_SERVICES_AND_EDUCATION_AND_RELATED_AGENCIES"},
	{"LEGISLATIVE BRANCH", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_E_LEGISLATIVE_BRANCH"},
	{"DEPARTMENT OF STATE, FOREIGN OPERATIONS, AND RELATED PROGRAMS", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_F_DEPARTMENT_OF_STATE_FOREIGN_OPERATIONS_AND_RELATED_PROGRAMS"},
	{"OTHER MATTERS (FURTHER)", "Further_Consolidated_Appropriations_Act_2024_Public_Law_html_Division_G_OTHER_MATTERS"},
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	return MustVocabulary(DefaultEntries)
}
