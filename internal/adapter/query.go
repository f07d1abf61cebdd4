package adapter

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Query is a Drive search expression assembled from escaped clauses.
// Clauses are joined with "and"; trashed objects are always excluded.
// The zero value is usable. The first invalid input is kept and
// reported by Build.
type Query struct {
	clauses []string
	preds   []func(*ObjectMetadata) bool
	err     error
}

// NewQuery starts a query that excludes trashed objects.
func NewQuery() Query {
	return Query{clauses: []string{"trashed = false"}}
}

// quote escapes s for use inside a single-quoted Drive query literal.
func quote(s string) (string, error) {
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: control character %U", ErrInvalidQuery, r)
		}
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'", nil
}

func (q Query) with(pred func(*ObjectMetadata) bool, format string, args ...string) Query {
	if q.err != nil {
		return q
	}
	if len(q.clauses) == 0 {
		q = NewQuery()
	}

	quoted := make([]any, len(args))
	for i, a := range args {
		lit, err := quote(a)
		if err != nil {
			q.err = err
			return q
		}
		quoted[i] = lit
	}

	return Query{
		clauses: append(q.Clauses(), fmt.Sprintf(format, quoted...)),
		preds:   append(append([]func(*ObjectMetadata) bool(nil), q.preds...), pred),
	}
}

// InFolder keeps direct children of folderID.
func (q Query) InFolder(folderID string) Query {
	return q.with(func(m *ObjectMetadata) bool {
		return slices.Contains(m.Parents, folderID)
	}, "%s in parents", folderID)
}

// NameOrContentContains matches term against names and indexed content.
func (q Query) NameOrContentContains(term string) Query {
	lower := strings.ToLower(term)
	return q.with(func(m *ObjectMetadata) bool {
		return strings.Contains(strings.ToLower(m.Name), lower)
	}, "(name contains %s or fullText contains %s)", term, term)
}

// MIMETypeIs keeps objects with exactly this MIME type.
func (q Query) MIMETypeIs(mimeType string) Query {
	return q.with(func(m *ObjectMetadata) bool {
		return m.MIMEType == mimeType
	}, "mimeType = %s", mimeType)
}

// FoldersOnly keeps folders.
func (q Query) FoldersOnly() Query {
	return q.with((*ObjectMetadata).IsFolder, "mimeType = %s", FolderMIMEType)
}

// ExcludeFolders drops folders.
func (q Query) ExcludeFolders() Query {
	return q.with(func(m *ObjectMetadata) bool {
		return !m.IsFolder()
	}, "mimeType != %s", FolderMIMEType)
}

// Clauses returns a copy of the raw clauses.
func (q Query) Clauses() []string {
	return append([]string(nil), q.clauses...)
}

// Build renders the query or the first error met while building it.
func (q Query) Build() (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if len(q.clauses) == 0 {
		return "trashed = false", nil
	}
	return strings.Join(q.clauses, " and "), nil
}

// Match evaluates the query against m in process. fullText is
// approximated by the object's name.
func (q Query) Match(m *ObjectMetadata) bool {
	if q.err != nil {
		return false
	}
	for _, p := range q.preds {
		if !p(m) {
			return false
		}
	}
	return true
}

// String renders the query for logs.
func (q Query) String() string {
	s, err := q.Build()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return s
}
