package poelog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poelog/poelog-go/pkg/poelog/pattern"
)

const sampleLog = "2024/01/01 00:00:01 123 abc [INFO Client 1] : You have entered The Forest.\r\n" +
	"2024/01/01 00:00:02 124 abc [DEBUG Client 1] Got Instance Details\r\n" +
	"2024/01/01 00:00:03 125 abc [INFO Client 1] : SomeExile has joined the area.\r\n" +
	"2024/01/01 00:00:04 126 abc [INFO Client 1] : SomeExile (Witch) is now level 12"

func collect(t *testing.T, seq func(func(Record, error) bool)) ([]Record, []error) {
	t.Helper()
	var records []Record
	var errs []error
	for r, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, r)
	}
	return records, errs
}

func TestParseLine(t *testing.T) {
	records, err := ParseLine("2024/01/01 00:00:01 123 abc] : You have entered The Forest.")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "The Forest", records[0].Event.Area)
	assert.Equal(t, uint64(123), records[0].Info.Tick)
}

func TestParseLine_NoMatch(t *testing.T) {
	records, err := ParseLine("nothing to see here")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseLine_InvalidUTF8(t *testing.T) {
	_, err := ParseLine("bad \xff byte")
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestParseReader(t *testing.T) {
	records, errs := collect(t, ParseReader(context.Background(), strings.NewReader(sampleLog)))
	require.Empty(t, errs)
	require.Len(t, records, 3)

	assert.Equal(t, EventJoinedArea, records[0].Event.Type)
	assert.Equal(t, EventPlayerJoinedArea, records[1].Event.Type)
	// final line has no newline and is still parsed
	assert.Equal(t, EventLevelUp, records[2].Event.Type)
	assert.Equal(t, 12, records[2].Event.Level)
	assert.Equal(t, uint64(126), records[2].Info.Tick)
}

func TestParseReader_Filter(t *testing.T) {
	records, errs := collect(t, ParseReader(context.Background(), strings.NewReader(sampleLog),
		WithParseFilter([]EventType{EventLevelUp}, nil)))
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, EventLevelUp, records[0].Event.Type)
}

func TestParseReader_RawLine(t *testing.T) {
	records, errs := collect(t, ParseReader(context.Background(),
		strings.NewReader(": You have entered A.\n"), WithParseIncludeRawLine(true)))
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, ": You have entered A.", records[0].Info.RawLine)
}

func TestParseReader_InvalidUTF8Skipped(t *testing.T) {
	input := ": You have entered A.\n: bad \xff\n: You have entered B.\n"
	records, errs := collect(t, ParseReader(context.Background(), strings.NewReader(input)))

	require.Len(t, errs, 1)
	var perr *ParseError
	require.ErrorAs(t, errs[0], &perr)
	assert.Equal(t, 2, perr.LineNumber)
	assert.ErrorIs(t, errs[0], ErrInvalidUTF8)

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Event.Area)
	assert.Equal(t, "B", records[1].Event.Area)
}

func TestParseReader_LineTooLong(t *testing.T) {
	input := strings.Repeat("x", 100) + "\n"
	_, errs := collect(t, ParseReader(context.Background(), strings.NewReader(input),
		WithParseMaxLineBytes(10)))
	require.Len(t, errs, 1)
}

func TestParseReader_Break(t *testing.T) {
	n := 0
	for _, err := range ParseReader(context.Background(), strings.NewReader(sampleLog)) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestParseReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, errs := collect(t, ParseReader(ctx, strings.NewReader(sampleLog)))
	assert.Empty(t, records)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], context.Canceled))
}

func TestParseReader_RuleFiles(t *testing.T) {
	f := &pattern.File{
		Version: 1,
		Rules: []pattern.Rule{
			{ID: "slain", EventType: "death", Regex: `^: (?P<player>\S+) has been slain\.$`},
		},
	}
	records, errs := collect(t, ParseReader(context.Background(),
		strings.NewReader("2024/01/01 00:00:01 1 abc] : SomeExile has been slain.\n"),
		WithParseRuleFiles(f)))
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, EventType("death"), records[0].Event.Type)
	assert.Equal(t, map[string]string{"player": "SomeExile"}, records[0].Event.Data)
}

func TestParseReader_Parsers(t *testing.T) {
	var seen []string
	p := LineParserFunc(func(_ context.Context, line string) ([]Event, error) {
		seen = append(seen, line)
		if strings.HasPrefix(line, "Got ") {
			return []Event{{Type: "instance_details"}}, nil
		}
		return nil, nil
	})

	records, errs := collect(t, ParseReader(context.Background(), strings.NewReader(sampleLog), WithParseParsers(p)))
	require.Empty(t, errs)
	require.Len(t, seen, 4)
	// Parsers see the line after the prefix filter.
	assert.Equal(t, "Got Instance Details", seen[1])

	var types []EventType
	for _, r := range records {
		types = append(types, r.Event.Type)
	}
	assert.Contains(t, types, EventType("instance_details"))
	assert.Contains(t, types, EventJoinedArea)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Client.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	records, errs := collect(t, ParseFile(context.Background(), path))
	require.Empty(t, errs)
	assert.Len(t, records, 3)
}

func TestParseFile_Missing(t *testing.T) {
	_, errs := collect(t, ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt")))
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], os.ErrNotExist))
}
