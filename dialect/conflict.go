package dialect

// Conflict is the policy applied when an INSERT violates a constraint.
type Conflict int

const (
	ConflictNone Conflict = iota
	ConflictRollback
	ConflictAbort
	ConflictFail
	ConflictIgnore
	ConflictReplace
)

func (c Conflict) String() string {
	switch c {
	case ConflictRollback:
		return "ROLLBACK"
	case ConflictAbort:
		return "ABORT"
	case ConflictFail:
		return "FAIL"
	case ConflictIgnore:
		return "IGNORE"
	case ConflictReplace:
		return "REPLACE"
	}
	return ""
}
