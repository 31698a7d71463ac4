// Package legacy reads the older Plantit JSON export format and turns it into
// an import Draft.
//
// Decoding is tolerant: the document is first read into a generic JSON value
// tree, then each record type is decoded by walking an ordered field table
// (canonical field, accepted source keys, parser). The first accepted key that
// parses wins. Keys no table knows about are rendered to text and kept per
// record so the user can review what the mapping dropped.
//
// Only malformed JSON (including anything after the document), a missing
// "plant" object, a non-array "activities" or "schedules", and date values
// in no accepted format are errors. A weekday outside 1..7 or a day of
// month outside 1..31 is treated as unset.
package legacy
