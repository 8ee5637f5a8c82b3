package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem_WriteAll(t *testing.T) {
	var got string
	s := &System{write: func(text string) error {
		got = text
		return nil
	}}

	assert.NoError(t, s.WriteAll("s3cret"))
	assert.Equal(t, "s3cret", got)
}

func TestSystem_WriteAllUnsupported(t *testing.T) {
	called := false
	s := &System{unsupported: true, write: func(string) error {
		called = true
		return nil
	}}

	assert.ErrorIs(t, s.WriteAll("s3cret"), ErrUnsupported)
	assert.False(t, called)
}

func TestWriterFunc(t *testing.T) {
	boom := errors.New("no display")
	var w Writer = WriterFunc(func(string) error { return boom })

	assert.ErrorIs(t, w.WriteAll("x"), boom)
}
