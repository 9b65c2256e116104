package ledger

import (
	"fmt"
	"math/rand"
	"reflect"
	"slices"
	"testing"
	"testing/quick"
	"time"
)

func msg(id, from, to string) Message {
	return Message{ID: id, Text: "m" + id, SenderID: from, RecipientID: to, Timestamp: "2024-05-01T10:00:00Z"}
}

func ids(l *Ledger, self, other string) []string {
	var out []string
	for m := range l.ConversationWith(self, other) {
		out = append(out, m.ID)
	}
	return out
}

func TestConversationMatchesPairInArrivalOrder(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	l.IngestLive(msg("2", "C", "A"))
	l.IngestBacklog([]Message{msg("3", "B", "A"), msg("4", "B", "C")})
	l.IngestLive(msg("5", "A", "B"))

	tests := []struct {
		self, other string
		want        []string
	}{
		{"A", "B", []string{"1", "3", "5"}},
		{"B", "A", []string{"1", "3", "5"}},
		{"A", "C", []string{"2"}},
		{"B", "C", []string{"4"}},
		{"C", "D", nil},
	}
	for _, tt := range tests {
		t.Run(tt.self+"-"+tt.other, func(t *testing.T) {
			got := ids(l, tt.self, tt.other)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ConversationWith(%s, %s) = %v, want %v", tt.self, tt.other, got, tt.want)
			}
		})
	}
}

func TestArrivalOrderIgnoresTimestamps(t *testing.T) {
	l := New()
	late := msg("late", "A", "B")
	late.Timestamp = "2024-05-01T12:00:00Z"
	early := msg("early", "B", "A")
	early.Timestamp = "2024-05-01T08:00:00Z"
	l.IngestLive(late)
	l.IngestLive(early)

	if got := ids(l, "A", "B"); !slices.Equal(got, []string{"late", "early"}) {
		t.Errorf("order = %v, want arrival order [late early]", got)
	}
}

func TestBacklogOverlapIsDeduplicated(t *testing.T) {
	l := New()
	if !l.IngestLive(msg("1", "A", "B")) {
		t.Fatal("first live ingest rejected")
	}

	added := l.IngestBacklog([]Message{msg("0", "B", "A"), msg("1", "A", "B"), msg("2", "B", "A")})
	if added != 2 {
		t.Errorf("IngestBacklog added %d, want 2", added)
	}
	if got := ids(l, "A", "B"); !slices.Equal(got, []string{"1", "0", "2"}) {
		t.Errorf("conversation = %v, want [1 0 2]", got)
	}
}

func TestLiveRedeliveryIsDeduplicated(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	dup := msg("1", "A", "B")
	dup.Text = "changed"
	if l.IngestLive(dup) {
		t.Error("duplicate live message accepted")
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	m, _ := l.Get("1")
	if m.Text != "m1" {
		t.Errorf("text = %q, first arrival should win", m.Text)
	}
}

func TestDuplicateRaisesReadFlag(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	read := msg("1", "A", "B")
	read.Read = true
	l.IngestBacklog([]Message{read})

	m, _ := l.Get("1")
	if !m.Read {
		t.Error("read flag not raised by read duplicate")
	}

	// An unread duplicate never lowers it.
	l.IngestLive(msg("1", "A", "B"))
	m, _ = l.Get("1")
	if !m.Read {
		t.Error("read flag lowered by unread duplicate")
	}
}

func TestEmptyIDRejected(t *testing.T) {
	l := New()
	if l.IngestLive(Message{Text: "x", SenderID: "A", RecipientID: "B"}) {
		t.Error("message without id accepted")
	}
	if l.IngestBacklog([]Message{{Text: "y"}}) != 0 {
		t.Error("backlog message without id accepted")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))

	m, changed := l.MarkRead("1")
	if !changed || !m.Read {
		t.Fatalf("first MarkRead = (%+v, %v), want read and changed", m, changed)
	}
	if m.SenderID != "A" {
		t.Errorf("returned message sender = %q, want A", m.SenderID)
	}
	if _, changed := l.MarkRead("1"); changed {
		t.Error("second MarkRead reported a change")
	}
	got, _ := l.Get("1")
	if !got.Read {
		t.Error("message not read after MarkRead")
	}
}

func TestMarkReadUnknownIsNoop(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	if _, changed := l.MarkRead("nope"); changed {
		t.Error("MarkRead on unknown id reported a change")
	}
	got, _ := l.Get("1")
	if got.Read {
		t.Error("unrelated message marked read")
	}
}

func TestHasUnreadFrom(t *testing.T) {
	l := New()
	l.IngestLive(Message{ID: "1", SenderID: "A", RecipientID: "B"})
	l.IngestLive(Message{ID: "2", SenderID: "B", RecipientID: "A"})

	if !l.HasUnreadFrom("B", "A") {
		t.Error("B should have unread from A")
	}
	if l.HasUnreadFrom("A", "B") {
		t.Error("outbound message counted as unread for its sender")
	}
	if l.HasUnreadFrom("A", "C") {
		t.Error("no messages from C exist")
	}

	l.MarkRead("1")
	if l.HasUnreadFrom("B", "A") {
		t.Error("read message still counted as unread")
	}
}

func TestConversationSequenceIsRestartable(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	seq := l.ConversationWith("A", "B")

	first := slices.Collect(seq)
	l.IngestLive(msg("2", "B", "A"))
	second := slices.Collect(seq)

	if len(first) != 1 || len(second) != 2 {
		t.Errorf("ranges yielded %d then %d, want 1 then 2", len(first), len(second))
	}
}

func TestConversationEarlyBreak(t *testing.T) {
	l := New()
	for _, id := range []string{"1", "2", "3"} {
		l.IngestLive(msg(id, "A", "B"))
	}
	n := 0
	for range l.ConversationWith("A", "B") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d, want 2", n)
	}
}

func TestResetDiscardsEverything(t *testing.T) {
	l := New()
	l.IngestLive(msg("1", "A", "B"))
	l.Reset()
	if l.Len() != 0 {
		t.Errorf("Len() = %d after Reset", l.Len())
	}
	if !l.IngestLive(msg("1", "A", "B")) {
		t.Error("id should be accepted again after Reset")
	}
}

func TestMessageTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00.123Z", time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC)},
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T12:00:00+02:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00+0000", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T07:00:00.5-0300", time.Date(2024, 5, 1, 10, 0, 0, 500000000, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.250", time.Date(2024, 5, 1, 10, 0, 0, 250000000, time.UTC)},
		{"2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"yesterday", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Message{Timestamp: tt.in}.Time()
			if !got.Equal(tt.want) {
				t.Errorf("Time() = %v, want %v", got, tt.want)
			}
		})
	}
}

var participants = []string{"A", "B", "C"}

// ingest is one live message or one backlog batch.
type ingest struct {
	backlog bool
	batch   []Message
}

// session is a random interleaving of live and backlog deliveries drawn from
// a small id pool, so redeliveries and overlaps are frequent.
type session []ingest

func (session) Generate(r *rand.Rand, size int) reflect.Value {
	randomMsg := func() Message {
		from := r.Intn(len(participants))
		to := (from + 1 + r.Intn(len(participants)-1)) % len(participants)
		m := Message{
			SenderID:    participants[from],
			RecipientID: participants[to],
			Text:        fmt.Sprintf("t%d", r.Intn(100)),
			Read:        r.Intn(4) == 0,
		}
		if r.Intn(20) != 0 {
			m.ID = fmt.Sprintf("m%d", r.Intn(12))
		}
		return m
	}
	var s session
	for range r.Intn(size + 1) {
		if r.Intn(2) == 0 {
			s = append(s, ingest{batch: []Message{randomMsg()}})
			continue
		}
		batch := make([]Message, r.Intn(6))
		for i := range batch {
			batch[i] = randomMsg()
		}
		s = append(s, ingest{backlog: true, batch: batch})
	}
	return reflect.ValueOf(s)
}

func (s session) replay() *Ledger {
	l := New()
	for _, in := range s {
		if in.backlog {
			l.IngestBacklog(in.batch)
		} else {
			l.IngestLive(in.batch[0])
		}
	}
	return l
}

// firstArrivals is the expected ledger content: the first delivery of each
// id, in delivery order, read if any delivery of that id was read.
func (s session) firstArrivals() []Message {
	var out []Message
	pos := map[string]int{}
	for _, in := range s {
		for _, m := range in.batch {
			if m.ID == "" {
				continue
			}
			if i, ok := pos[m.ID]; ok {
				out[i].Read = out[i].Read || m.Read
				continue
			}
			pos[m.ID] = len(out)
			out = append(out, m)
		}
	}
	return out
}

func conversation(l *Ledger, a, b string) []Message {
	return slices.Collect(l.ConversationWith(a, b))
}

func snapshot(l *Ledger) [][]Message {
	var out [][]Message
	for i, a := range participants {
		for _, b := range participants[i+1:] {
			out = append(out, conversation(l, a, b))
		}
	}
	return out
}

func TestConversationEqualsFirstArrivalFilter(t *testing.T) {
	prop := func(s session) bool {
		l := s.replay()
		want := s.firstArrivals()
		if l.Len() != len(want) {
			return false
		}
		for i, a := range participants {
			for _, b := range participants[i+1:] {
				var filtered []Message
				for _, m := range want {
					if m.Between(a, b) {
						filtered = append(filtered, m)
					}
				}
				if !slices.Equal(conversation(l, a, b), filtered) || !slices.Equal(conversation(l, b, a), filtered) {
					return false
				}
			}
		}
		return true
	}
	if err := quick.Check(prop, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

func TestMarkReadTwiceEqualsOnce(t *testing.T) {
	prop := func(s session, pick uint8) bool {
		id := fmt.Sprintf("m%d", pick%14)
		once, twice := s.replay(), s.replay()

		m1, changed1 := once.MarkRead(id)
		m2, changed2 := twice.MarkRead(id)
		m3, changed3 := twice.MarkRead(id)
		if m1 != m2 || changed1 != changed2 || changed3 || m3 != m2 {
			return false
		}
		return slices.EqualFunc(snapshot(once), snapshot(twice), slices.Equal[[]Message])
	}
	if err := quick.Check(prop, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
