package stream

// FakeStream records writes for test assertions.
type FakeStream struct {
	// Writes contains every successful write, in order.
	Writes [][]byte

	// Attempts counts calls to Write, including failed ones.
	Attempts int

	// WriteError, if set, is returned by every write from attempt
	// FailAt onwards (1-based). FailAt 0 fails every write.
	WriteError error
	FailAt     int

	// ShortWrite makes successful writes report one byte less than given.
	ShortWrite bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeStream creates a FakeStream that accepts every write.
func NewFakeStream() *FakeStream {
	return &FakeStream{}
}

// Write records p.
func (f *FakeStream) Write(p []byte) (int, error) {
	f.Attempts++
	if f.WriteError != nil && f.Attempts >= f.FailAt {
		return 0, f.WriteError
	}
	f.Writes = append(f.Writes, append([]byte(nil), p...))
	if f.ShortWrite && len(p) > 0 {
		return len(p) - 1, nil
	}
	return len(p), nil
}

// Close marks the stream as closed.
func (f *FakeStream) Close() error {
	f.Closed = true
	return nil
}

// Messages returns the successful writes as strings.
func (f *FakeStream) Messages() []string {
	out := make([]string, len(f.Writes))
	for i, w := range f.Writes {
		out[i] = string(w)
	}
	return out
}
