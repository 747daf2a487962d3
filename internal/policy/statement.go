// Package policy screens SQL statements before they reach the mutating
// execution path.
//
// The engine is a defense-in-depth heuristic built on tokenization, not a
// SQL parser and not a security boundary. A statement passing Classify is
// not proven safe; it has merely cleared the deny rules below. Callers
// must keep treating the datastore's own permissions as the real guard.
package policy

import (
	"fmt"
	"strings"
)

// denied lists statement keywords that must never run through the
// mutating tool path. Matching is token-exact: an identifier that merely
// contains one of these words (e.g. a "created_at" column) is not
// rejected on that basis.
var denied = map[string]struct{}{
	"DROP":     {},
	"TRUNCATE": {},
	"ALTER":    {},
	"CREATE":   {},
	"GRANT":    {},
	"REVOKE":   {},
}

// Decision is the outcome of classifying a statement.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allowed is the decision for statements that cleared every rule.
var Allowed = Decision{Allowed: true}

// Rejected builds a rejection with the given reason.
func Rejected(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Classify screens a raw statement for the mutating execution path.
//
// Two rules apply, in order:
//
//  1. Read-only redirection: a statement beginning with SELECT (case
//     insensitive, surrounding whitespace trimmed) is rejected; reads go
//     through the query_data tool. The mutating path is reserved for
//     INSERT, UPDATE and DELETE.
//  2. Deny-list: a statement is rejected if any whitespace-delimited
//     token, uppercased, exactly matches a denied keyword.
func Classify(stmt string) Decision {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return Rejected("empty statement")
	}

	if len(trimmed) >= len("SELECT") && strings.EqualFold(trimmed[:len("SELECT")], "SELECT") {
		return Rejected("SELECT queries should use the query_data tool, not execute_update")
	}

	for _, token := range strings.Fields(trimmed) {
		upper := strings.ToUpper(token)
		if _, ok := denied[upper]; ok {
			return Rejected("potentially dangerous operation (%s) detected; only INSERT, UPDATE and DELETE are allowed", upper)
		}
	}

	return Allowed
}
