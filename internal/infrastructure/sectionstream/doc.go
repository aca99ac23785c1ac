// Package sectionstream splits a streamed LLM completion into named
// thesis sections.
//
// The model is instructed to delimit its output with inline markers:
//
//	---SECCION:introduccion---
//	Texto de la introducción...
//	---SECCION:marco_teorico---
//	...
//	---ERROR:metodologia---
//	No hay datos suficientes para esta sección.
//
// Text arrives in chunks of arbitrary size, so a marker may be split
// across any number of chunks. The Parser buffers only the shortest tail
// that could still turn into a marker and emits everything else as soon
// as it arrives, which keeps the canvas responsive while streaming.
//
// Rules:
//   - keywords are case-insensitive; SECCION, SECCIÓN and ERROR are recognised
//   - names are normalised like thesis section names and limited to 64 runes
//   - a candidate marker that is not closed within 96 bytes, or whose name is
//     empty or invalid, is ordinary text
//   - a single newline right after a marker is dropped
//   - text before the first marker is the preamble; it is counted, not emitted
//
// The Assembler folds parser events into per-section content.
package sectionstream
