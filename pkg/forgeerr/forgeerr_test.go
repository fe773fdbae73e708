package forgeerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := New(KindCorpusLoad, "no pages found in corpus at %s", "/tmp/c")
	assert.Equal(t, "corpus_load: no pages found in corpus at /tmp/c", err.Error())

	sess := &Error{Kind: KindTeacherSession, Message: "max attempts reached", Attempt: 5, Preview: "def main():"}
	assert.Equal(t, "teacher_session: max attempts reached (attempt 5)\nlast output: def main():", sess.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(KindSearch, nil, "ignored"))

	cause := errors.New("connection refused")
	err := Wrap(KindSearch, cause, "search for %q failed", "cobra flags")
	assert.EqualError(t, err, `search: search for "cobra flags" failed: connection refused`)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Cause(err))
}

func TestKindOf(t *testing.T) {
	inner := New(KindDiscovery, "map failed")
	wrapped := errors.Wrap(inner, "discover")

	assert.Equal(t, KindDiscovery, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindDiscovery))
	assert.False(t, Is(wrapped, KindSearch))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))

	// the outermost kind wins
	outer := Wrap(KindCorpusUpdate, inner, "enrich")
	assert.Equal(t, KindCorpusUpdate, KindOf(outer))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
}
