package lyrics

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLRC = `[ar:Some Artist]
[ti:Some Song]

[00:12.00]Line one
[00:17.20]Line two
[01:02.5]Line three
[01:10]Line four
`

func TestParse(t *testing.T) {
	lines := Parse(sampleLRC)
	require.Len(t, lines, 4)

	assert.Equal(t, 12*time.Second, lines[0].At)
	assert.Equal(t, "Line one", lines[0].Text)
	assert.Equal(t, 17*time.Second+200*time.Millisecond, lines[1].At)
	assert.Equal(t, time.Minute+2*time.Second+500*time.Millisecond, lines[2].At)
	assert.Equal(t, time.Minute+10*time.Second, lines[3].At)
}

func TestParseRepeatedTimestamps(t *testing.T) {
	lines := Parse("[00:10.00][00:50.00]Chorus\n[00:30.00]Verse")
	require.Len(t, lines, 3)

	assert.Equal(t, "Chorus", lines[0].Text)
	assert.Equal(t, 10*time.Second, lines[0].At)
	assert.Equal(t, "Verse", lines[1].Text)
	assert.Equal(t, "Chorus", lines[2].Text)
	assert.Equal(t, 50*time.Second, lines[2].At)
}

func TestParseSorted(t *testing.T) {
	lines := Parse("[00:30.00]Later\n[00:10.00]Earlier")
	require.Len(t, lines, 2)
	assert.Equal(t, "Earlier", lines[0].Text)
	assert.Equal(t, "Later", lines[1].Text)
}

func TestParseEmptyAndUntimed(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("just some text\nno timestamps here"))
	assert.Empty(t, Parse("[ar:Artist]\n[al:Album]"))
}

func TestTrackerIndexAt(t *testing.T) {
	tr := NewTracker(Parse(sampleLRC))

	assert.Equal(t, -1, tr.IndexAt(0))
	assert.Equal(t, -1, tr.IndexAt(11*time.Second))
	assert.Equal(t, 0, tr.IndexAt(12*time.Second))
	assert.Equal(t, 0, tr.IndexAt(15*time.Second))
	assert.Equal(t, 1, tr.IndexAt(20*time.Second))
	assert.Equal(t, 3, tr.IndexAt(10*time.Minute))
}

func TestTrackerLineAt(t *testing.T) {
	tr := NewTracker(Parse(sampleLRC))

	_, ok := tr.LineAt(time.Second)
	assert.False(t, ok)

	line, ok := tr.LineAt(18 * time.Second)
	require.True(t, ok)
	assert.Equal(t, "Line two", line.Text)
}

type fakeSource struct {
	lrc string
	err error
}

func (f *fakeSource) Lyrics(_ context.Context, _, _ string) (string, error) {
	return f.lrc, f.err
}

func TestFetch(t *testing.T) {
	tr, err := Fetch(context.Background(), &fakeSource{lrc: sampleLRC}, "Song", "Artist")
	require.NoError(t, err)
	assert.Len(t, tr.Lines(), 4)
}

func TestFetchNoLyrics(t *testing.T) {
	_, err := Fetch(context.Background(), &fakeSource{lrc: "plain text"}, "Song", "Artist")
	assert.ErrorIs(t, err, ErrNoLyrics)
}

func TestFetchSourceError(t *testing.T) {
	_, err := Fetch(context.Background(), &fakeSource{err: errors.New("boom")}, "Song", "Artist")
	assert.Error(t, err)
}
