// Package sanitizer normalizes free-form user input before validation and
// storage.
//
// Whitespace is collapsed and trimmed everywhere. Text that is echoed back to
// clients (room names, locations, booking purposes) is HTML-escaped. Equipment
// tags are lowercased and deduplicated so filters match regardless of case.
package sanitizer
