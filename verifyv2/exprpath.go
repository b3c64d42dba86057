// Copyright 2025 Certen Protocol
//
// Validates an advertised expr_path against the witness tree, per
// spec.md §4.9 step 7: it must be a real path in the witness under
// "http_expr", and it must be the longest exact-or-wildcard match for the
// request URL — a more specific, unexplored path along the same prefix
// invalidates the claim.

package verifyv2

import (
	"github.com/certen/http-certification-core/internal/hashtree"
	"github.com/certen/http-certification-core/internal/httpcerttree"
	"github.com/certen/http-certification-core/internal/verifyerr"
)

func validateExprPath(witnessTree *hashtree.Tree, exprPath []string, requestSegments []string) error {
	if len(exprPath) == 0 {
		return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "empty expr_path")
	}

	term := exprPath[len(exprPath)-1]
	prefix := exprPath[:len(exprPath)-1]

	switch term {
	case string(httpcerttree.Exact):
		if !stringsEqual(prefix, requestSegments) {
			return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "exact expr_path does not match request URL")
		}
	case string(httpcerttree.Wildcard):
		if !isPrefix(prefix, requestSegments) {
			return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "wildcard expr_path is not a prefix of the request URL")
		}
	default:
		return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "unrecognized expr_path terminator")
	}

	if !entryExists(witnessTree, exprPath) {
		return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "expr_path is not a valid path in the witness")
	}

	for l := len(requestSegments); l > len(prefix); l-- {
		longer := requestSegments[:l]
		exact := l == len(requestSegments)

		if exact && term != string(httpcerttree.Exact) && entryExists(witnessTree, withTerm(longer, httpcerttree.Exact)) {
			return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "a more specific exact entry exists for the request URL")
		}
		if !(term == string(httpcerttree.Wildcard) && len(prefix) == l) {
			if entryExists(witnessTree, withTerm(longer, httpcerttree.Wildcard)) {
				return verifyerr.New(verifyerr.KindInvalidExpressionPath, 2, "a more specific wildcard entry exists for the request URL")
			}
		}
	}

	return nil
}

func withTerm(segments []string, term httpcerttree.Terminator) []string {
	out := make([]string, 0, len(segments)+1)
	out = append(out, segments...)
	out = append(out, string(term))
	return out
}

// entryExists reports whether the witness tree has a node present (Found,
// not Absent or Unknown) at ["http_expr", …path].
func entryExists(witnessTree *hashtree.Tree, path []string) bool {
	labels := make([][]byte, 0, len(path)+1)
	labels = append(labels, []byte(httpcerttree.RootLabel))
	for _, s := range path {
		labels = append(labels, []byte(s))
	}
	status, _ := hashtree.LookupSubtree(witnessTree, labels)
	return status == hashtree.StatusFound
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}
