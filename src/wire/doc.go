// Package wire implements the primitives of the RELOAD binary encoding.
//
// All integers are written in network byte order. Variable sized fields are
// preceded by a length prefix whose width (1, 2, 3, 4 or 8 bytes) is fixed by
// the structure being encoded. Nested blocks are encoded into a scratch buffer
// first, so the prefix is emitted once the body is complete and no seeking in
// the output is ever needed.
//
// Decoding is strict: running out of data, an unknown union tag, or bytes left
// over inside a length-delimited block all produce a ParseError.
package wire
