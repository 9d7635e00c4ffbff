// Package exposition renders metric families in the Prometheus text
// exposition format and reads that format back.
//
// A Document is an ordered list of Families. Writing a Document produces:
//
//	# HELP <name> <help>
//	# TYPE <name> gauge
//	<name>{label="value",...} <value>
//
// for every family, families separated by one blank line, the whole block
// terminated by a newline. Label order is the order the caller added them;
// nothing is sorted, so output is byte-stable for identical input.
//
// Label values escape backslash, double quote and newline. Free-text labels
// created with Text are cut to MaxTextLen runes before escaping.
//
// Parse (expfmt.TextParser) turns text back into client_model families; it is
// used by the dashboard contract checker and by round-trip tests. Proto and
// Encode convert a Document for clients that negotiate a non-text format.
package exposition
