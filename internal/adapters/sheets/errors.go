package sheets

import "errors"

var (
	ErrNoSpreadsheet = errors.New("no spreadsheet id configured")
	ErrBadReference  = errors.New("malformed reference sheet")
)
