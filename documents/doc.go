// Package documents turns a directory of text files into chunk batches.
//
// Service walks the input root, keeps files whose extension is accepted,
// loads each with langchaingo's text loader and cuts it with a recursive
// character splitter (or the markdown splitter for .md files when enabled).
// Chunks from consecutive files are packed into fixed-size batches and
// handed out through a single-use iterator.
package documents
