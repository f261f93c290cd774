package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadIdentifier is returned for table or column names that cannot be
// quoted safely.
var ErrBadIdentifier = errors.New("bad sql identifier")

// QuoteIdent quotes name as an SQL identifier. Both SQLite and Postgres
// accept double quotes; names holding a quote or NUL are refused.
func QuoteIdent(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\"\x00") {
		return "", fmt.Errorf("%w: %q", ErrBadIdentifier, name)
	}
	return `"` + name + `"`, nil
}
