package storage

import "errors"

// Report Loader input-validation errors. These are surfaced to the caller
// verbatim before a job starts; none of them is recoverable by retrying
// with the same file.
var (
	// ErrUnreadableFile is returned when the workbook container cannot be
	// parsed at all (corrupt, wrong format, unsupported version).
	ErrUnreadableFile = errors.New("could not open file")

	// ErrEmptyFile is returned when the selected sheet has zero rows.
	ErrEmptyFile = errors.New("file is empty")

	// ErrHeaderNotFound is returned when none of the first rows contains a
	// cell naming a store/name column.
	ErrHeaderNotFound = errors.New("could not find header row (looking for a column containing 'name')")

	// ErrNameColumnMissing is returned when a header row exists but no
	// column maps to the store name field.
	ErrNameColumnMissing = errors.New("could not find a 'Store Name' or 'Name' column")
)
