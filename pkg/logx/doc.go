// Package logx is plantit's structured logging layer on top of zerolog.
//
// Console output is human readable with a short file:line caller. The file
// sink writes JSON lines. Subsystem loggers carry a "category" field (see
// CatData and the other Cat constants) so the file can be filtered by concern.
package logx
