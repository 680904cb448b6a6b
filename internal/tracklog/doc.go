// Package tracklog records one row per pipeline cycle: the interval since
// the previous cycle followed by the raw, corrected, filtered and mapped
// poses. Rows can go to a CSV file, a SQLite session database, or both.
package tracklog
