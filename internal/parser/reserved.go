package parser

// reservedWords may not be used as entity, property or command names.
// The set covers every grammar keyword plus `delete` and `publish`, which
// are not keywords today but collide with generated route verbs and
// historically misparsed downstream. Rejection happens here, at the
// declaration site, with a positioned diagnostic; nothing downstream
// should ever see a reserved declaration name.
var reservedWords = map[string]bool{
	"module":     true,
	"entity":     true,
	"property":   true,
	"command":    true,
	"constraint": true,
	"policy":     true,
	"event":      true,
	"emits":      true,
	"emit":       true,
	"when":       true,
	"guard":      true,
	"mutate":     true,
	"compute":    true,
	"returns":    true,
	"store":      true,
	"and":        true,
	"or":         true,
	"not":        true,
	"in":         true,
	"contains":   true,
	"is":         true,
	"true":       true,
	"false":      true,
	"null":       true,
	"delete":     true,
	"publish":    true,
}

// IsReserved reports whether name may not be used as a declaration name.
func IsReserved(name string) bool {
	return reservedWords[name]
}
