package graph

import "bytes"

// byteReadCloser adapts an in-memory byte slice (what Client.Download returns)
// to the io.ReadCloser that source.Content requires.
type byteReadCloser struct {
	*bytes.Reader
}

func newByteReadCloser(data []byte) *byteReadCloser {
	return &byteReadCloser{bytes.NewReader(data)}
}

func (b *byteReadCloser) Close() error { return nil }
