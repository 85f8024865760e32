package poelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poelog/poelog-go/pkg/poelog/dispatch"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
	"github.com/poelog/poelog-go/pkg/poelog/poll"
)

// collector is a Sink that records everything it receives.
type collector struct {
	records []Record
	err     error
}

func (c *collector) Send(_ context.Context, r Record) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, r)
	return nil
}

// batches returns a poller yielding each batch once and then errDone.
func batches(bs ...[]string) poll.Poller[string] {
	i := 0
	return poll.Func[string](func(ctx context.Context) ([]string, error) {
		if i >= len(bs) {
			return nil, errDone
		}
		b := bs[i]
		i++
		return b, nil
	})
}

var errDone = errors.New("done")

func newTestEvents(t *testing.T, src poll.Poller[string], opts ...WatchOption) (*Events, *collector) {
	t.Helper()
	c := &collector{}
	e := NewEvents(src, c, opts...)
	require.NoError(t, e.RegisterDefaults())
	return e, c
}

func TestEvents_JoinedAreaWithPrefix(t *testing.T) {
	e, c := newTestEvents(t, nil)

	require.NoError(t, e.Process(context.Background(), "2024/01/01 00:00:01 123 abc] : You have entered The Forest."))

	require.Len(t, c.records, 1)
	r := c.records[0]
	assert.Equal(t, EventJoinedArea, r.Event.Type)
	assert.Equal(t, "The Forest", r.Event.Area)
	assert.Equal(t, uint64(123), r.Info.Tick)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 1, 0, time.Local).Equal(r.Info.Timestamp),
		"timestamp = %v", r.Info.Timestamp)
	assert.Empty(t, r.Info.RawLine)
}

func TestEvents_LineWithoutPrefix(t *testing.T) {
	e, c := newTestEvents(t, nil)

	require.NoError(t, e.Process(context.Background(), "Connecting to instance server at 10.0.0.5"))

	require.Len(t, c.records, 1)
	r := c.records[0]
	assert.Equal(t, EventConnectingToInstance, r.Event.Type)
	assert.Equal(t, "10.0.0.5", r.Event.Address)
	assert.Equal(t, Info{}, r.Info)
}

func TestEvents_BuiltinRules(t *testing.T) {
	prefix := "2024/01/15 23:59:59 123456789 cffb0719 [INFO Client 1234] "

	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "player joined",
			line: prefix + ": SomeExile has joined the area.",
			want: Event{Type: EventPlayerJoinedArea, Player: "SomeExile"},
		},
		{
			name: "player left",
			line: prefix + ": SomeExile has left the area.",
			want: Event{Type: EventPlayerLeftArea, Player: "SomeExile"},
		},
		{
			name: "level up",
			line: prefix + ": SomeExile (Witch) is now level 12",
			want: Event{Type: EventLevelUp, Player: "SomeExile", Class: "Witch", Level: 12},
		},
		{
			name: "instance with port",
			line: prefix + "Connecting to instance server at 10.0.0.5:6112",
			want: Event{Type: EventConnectingToInstance, Address: "10.0.0.5:6112"},
		},
		{
			name: "crlf line",
			line: prefix + ": You have entered Lioneye's Watch.\r",
			want: Event{Type: EventJoinedArea, Area: "Lioneye's Watch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, c := newTestEvents(t, nil)
			require.NoError(t, e.Process(context.Background(), tt.line))
			require.Len(t, c.records, 1)
			assert.Equal(t, tt.want, c.records[0].Event)
			assert.Equal(t, uint64(123456789), c.records[0].Info.Tick)
			assert.Equal(t, "INFO", c.records[0].Info.Severity)
		})
	}
}

func TestEvents_NoMatch(t *testing.T) {
	e, c := newTestEvents(t, nil)

	require.NoError(t, e.Process(context.Background(), "2024/01/15 23:59:59 1 abc [DEBUG Client 1] Got Instance Details"))
	require.NoError(t, e.Process(context.Background(), ""))

	assert.Empty(t, c.records)
}

func TestEvents_RunProcessesBatchesInOrder(t *testing.T) {
	src := batches(
		[]string{
			": You have entered A.",
			": You have entered B.",
		},
		[]string{": You have entered C."},
	)
	e, c := newTestEvents(t, src)

	err := e.Run(context.Background())
	require.ErrorIs(t, err, errDone)

	require.Len(t, c.records, 3)
	assert.Equal(t, "A", c.records[0].Event.Area)
	assert.Equal(t, "B", c.records[1].Event.Area)
	assert.Equal(t, "C", c.records[2].Event.Area)
}

func TestEvents_SinkErrorStopsRun(t *testing.T) {
	boom := errors.New("sink full")
	src := batches([]string{": You have entered A.", ": You have entered B."})
	c := &collector{err: boom}
	e := NewEvents(src, c)
	require.NoError(t, e.RegisterDefaults())

	err := e.Run(context.Background())

	require.ErrorIs(t, err, boom)
	var herr *dispatch.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, 0, herr.Index)
}

func TestEvents_TypeFilter(t *testing.T) {
	lines := []string{
		": You have entered A.",
		": SomeExile has joined the area.",
		": SomeExile has left the area.",
	}

	t.Run("include", func(t *testing.T) {
		e, c := newTestEvents(t, nil, WithIncludeTypes(EventPlayerJoinedArea))
		for _, l := range lines {
			require.NoError(t, e.Process(context.Background(), l))
		}
		require.Len(t, c.records, 1)
		assert.Equal(t, EventPlayerJoinedArea, c.records[0].Event.Type)
	})

	t.Run("exclude", func(t *testing.T) {
		e, c := newTestEvents(t, nil, WithExcludeTypes(EventJoinedArea))
		for _, l := range lines {
			require.NoError(t, e.Process(context.Background(), l))
		}
		assert.Len(t, c.records, 2)
	})

	t.Run("exclude wins", func(t *testing.T) {
		e, c := newTestEvents(t, nil,
			WithFilter([]EventType{EventJoinedArea}, []EventType{EventJoinedArea}))
		for _, l := range lines {
			require.NoError(t, e.Process(context.Background(), l))
		}
		assert.Empty(t, c.records)
	})
}

func TestEvents_IncludeRawLine(t *testing.T) {
	line := "2024/01/01 00:00:01 123 abc] : You have entered The Forest.\r"
	e, c := newTestEvents(t, nil, WithIncludeRawLine(true))

	require.NoError(t, e.Process(context.Background(), line))

	require.Len(t, c.records, 1)
	assert.Equal(t, line, c.records[0].Info.RawLine)
}

func TestEvents_RegisterRuleFile(t *testing.T) {
	f, err := pattern.LoadBytes([]byte(`
version: 1
rules:
  - id: trade
    event_type: trade_whisper
    regex: '^@From (?P<from>[^:]+): (?P<message>.+)$'
`))
	require.NoError(t, err)

	e, c := newTestEvents(t, nil)
	require.NoError(t, e.RegisterRuleFile(f))

	require.NoError(t, e.Process(context.Background(),
		"2024/01/01 00:00:01 123 abc [INFO Client 1] @From Buyer: Hi, I'd like to buy"))

	require.Len(t, c.records, 1)
	r := c.records[0]
	assert.Equal(t, EventType("trade_whisper"), r.Event.Type)
	assert.Equal(t, map[string]string{"from": "Buyer", "message": "Hi, I'd like to buy"}, r.Event.Data)
	assert.Equal(t, uint64(123), r.Info.Tick)
}

func TestEvents_RegisterRuleFile_InvalidRegex(t *testing.T) {
	f := &pattern.File{
		Version: 1,
		Rules: []pattern.Rule{
			{ID: "ok", EventType: "ok", Regex: `^ok$`},
			{ID: "bad", EventType: "bad", Regex: `(unclosed`},
		},
	}

	e, c := newTestEvents(t, nil)
	err := e.RegisterRuleFile(f)

	var rerr *pattern.RuleError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Index)
	assert.Equal(t, "bad", rerr.ID)
	assert.Equal(t, "regex", rerr.Field)
	var perr *dispatch.PatternError
	assert.ErrorAs(t, err, &perr)

	// The valid rule before the bad one must not have been registered.
	require.NoError(t, e.Process(context.Background(), "ok"))
	assert.Empty(t, c.records)
}

func TestEvents_RegisterEvent(t *testing.T) {
	e, c := newTestEvents(t, nil)
	err := e.RegisterEvent(`^: (?P<player>\S+) has been slain\.$`, func(m dispatch.Captures) Event {
		return Event{Type: "death", Player: m.Get("player")}
	})
	require.NoError(t, err)

	require.NoError(t, e.Process(context.Background(), ": SomeExile has been slain."))

	require.Len(t, c.records, 1)
	assert.Equal(t, Event{Type: "death", Player: "SomeExile"}, c.records[0].Event)
}

func TestEvents_RegisterParser(t *testing.T) {
	e, c := newTestEvents(t, nil)
	var got string
	require.NoError(t, e.RegisterParser(LineParserFunc(func(_ context.Context, line string) ([]Event, error) {
		got = line
		return []Event{
			{Type: "stash", Data: map[string]string{"tab": "1"}},
			{Type: "stash", Data: map[string]string{"tab": "2"}},
		}, nil
	})))

	require.NoError(t, e.Process(context.Background(), "2024/01/01 00:00:01 123 abc [INFO Client 1] Stash opened"))
	assert.Equal(t, "Stash opened", got)
	require.Len(t, c.records, 2)
	assert.Equal(t, "2", c.records[1].Event.Data["tab"])
	assert.Equal(t, uint64(123), c.records[0].Info.Tick)
	assert.Equal(t, "INFO", c.records[1].Info.Severity)
}

func TestEvents_RegisterParser_Nil(t *testing.T) {
	e, _ := newTestEvents(t, nil)
	assert.Error(t, e.RegisterParser(nil))
}

func TestEvents_RegisterParser_ErrorSkipsLine(t *testing.T) {
	e, c := newTestEvents(t, batches([]string{"bad", "2024/01/01 00:00:01 1 abc] : You have entered The Forest."}))
	calls := 0
	require.NoError(t, e.RegisterParser(LineParserFunc(func(context.Context, string) ([]Event, error) {
		calls++
		return nil, errors.New("plugin failed")
	})))

	err := e.Run(context.Background())
	require.ErrorIs(t, err, errDone)
	assert.Equal(t, 2, calls)
	require.Len(t, c.records, 1)
	assert.Equal(t, EventJoinedArea, c.records[0].Event.Type)
}

func TestEvents_RegisterParser_ContextDone(t *testing.T) {
	e, _ := newTestEvents(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.RegisterParser(LineParserFunc(func(ctx context.Context, _ string) ([]Event, error) {
		cancel()
		return nil, ctx.Err()
	})))

	err := e.Process(ctx, "anything")
	var herr *dispatch.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvents_RegisterParser_TypeFilter(t *testing.T) {
	e, c := newTestEvents(t, nil, WithExcludeTypes("noise"))
	require.NoError(t, e.RegisterParser(LineParserFunc(func(context.Context, string) ([]Event, error) {
		return []Event{{Type: "noise"}, {Type: "signal"}}, nil
	})))

	require.NoError(t, e.Process(context.Background(), "line"))
	require.Len(t, c.records, 1)
	assert.Equal(t, EventType("signal"), c.records[0].Event.Type)
}
