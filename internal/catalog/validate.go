package catalog

import "strings"

// MaxKBNameLength bounds knowledge_base.name / multi_source_knowledge_base.name.
// Postgres TEXT has no intrinsic limit, but unbounded names make for unreadable CLI
// output and log lines.
const MaxKBNameLength = 256

// ValidateKBName reports whether name is an acceptable KnowledgeBase or
// MultiSourceKnowledgeBase name: non-empty, no leading/trailing whitespace, within
// MaxKBNameLength, and not colliding with the "_placeholder" suffix the schema
// bridge reserves for placeholder KBs.
func ValidateKBName(name string) error {
	if name == "" {
		return ErrInvalidSourceID
	}
	if len(name) > MaxKBNameLength {
		return ErrInvalidSourceID
	}
	if strings.TrimSpace(name) != name {
		return ErrInvalidSourceID
	}
	if strings.HasSuffix(name, "_placeholder") {
		return ErrInvalidSourceID
	}
	return nil
}

// ValidateSourceDefinitions checks that every SourceDefinition.SourceID is
// individually well-formed and that no two share the same SourceID within the set
// (the database enforces this too, but callers want to fail fast before issuing
// any inserts).
func ValidateSourceDefinitions(defs []SourceDefinition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if err := ValidateSourceID(d.SourceID); err != nil {
			return err
		}
		if _, dup := seen[d.SourceID]; dup {
			return ErrDuplicateSourceID
		}
		seen[d.SourceID] = struct{}{}
	}
	return nil
}
