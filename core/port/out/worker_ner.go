package out

// Entity labels produced by an EntityRecognizer.
const (
	EntityPerson   = "PERSON"
	EntityLocation = "GPE"
	EntityOrg      = "ORG"
)

// Entity is a named entity found in text. Line is the index of the
// non-empty input line holding it, or -1 when unknown.
type Entity struct {
	Text  string
	Label string
	Line  int
}

// EntityRecognizer NER 인터페이스 (PERSON, GPE/LOC)
type EntityRecognizer interface {
	Entities(text string) []Entity
}
