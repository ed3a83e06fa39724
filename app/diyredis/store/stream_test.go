package store

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	anothertrie "github.com/dghubble/trie"
	radix "github.com/armon/go-radix"
)

var testIDs []StreamID
var seed int64

func TestMain(m *testing.M) {
	seed = rand.Int63()
	fmt.Println("Using seed", seed)
	testIDs = genRandIDs(seed, 10000)
	m.Run()
}

func genRandIDs(seed int64, count int) []StreamID {
	randgen := rand.New(rand.NewSource(seed))

	ids := make([]StreamID, count)
	for i := range count {
		ids[i] = StreamID{randgen.Uint64(), randgen.Uint64()}
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})

	return ids
}

func TestInternalReprBasic(t *testing.T) {
	reprDiff := func(a, b []uint8) bool {
		if len(a) != len(b) {
			return true
		}
		for i := range a {
			if a[i] != b[i] {
				return true
			}
		}
		return false
	}

	if repr := (StreamID{0, 0}).internalRepr(); len(repr) != 22 || reprDiff(repr, []uint8{21: 0}) {
		t.Errorf("wrong internal repr for 0-0")
	}
	if repr := (StreamID{0, 63}).internalRepr(); reprDiff(repr, []uint8{21: 63}) {
		t.Errorf("wrong internal repr for 0-63")
	}
	if repr := (StreamID{0, 64}).internalRepr(); reprDiff(repr, []uint8{20: 1, 21: 0}) {
		t.Errorf("wrong internal repr for 0-64")
	}
	if repr := (StreamID{0, 127}).internalRepr(); reprDiff(repr, []uint8{20: 1, 21: 63}) {
		t.Errorf("wrong internal repr for 0-127")
	}
}

func TestParseStreamID(t *testing.T) {
	ms, seq, hasSeq, err := ParseStreamID("5-10")
	if err != nil || ms != 5 || seq != 10 || !hasSeq {
		t.Errorf("got (%d, %d, %v, %v), want (5, 10, true, nil)", ms, seq, hasSeq, err)
	}

	ms, seq, hasSeq, err = ParseStreamID("5")
	if err != nil || ms != 5 || seq != 0 || hasSeq {
		t.Errorf("got (%d, %d, %v, %v), want (5, 0, false, nil)", ms, seq, hasSeq, err)
	}

	if _, _, _, err := ParseStreamID("nope"); err != ErrBadStreamID {
		t.Errorf("got %v, want ErrBadStreamID", err)
	}
}

func TestStreamInsertAndRange(t *testing.T) {
	s := &Stream{}
	for i, id := range testIDs[:1000] {
		s.Insert(id, []FieldPair{{"n", fmt.Sprint(i)}})
	}

	got := s.Range(MinStreamID, MaxStreamID)
	if len(got) != 1000 {
		t.Fatalf("got %d entries, want 1000", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].ID.Less(got[i].ID) {
			t.Errorf("range result not sorted at index %d", i)
		}
	}
}

func TestStreamRangeBounds(t *testing.T) {
	s := &Stream{}
	ids := []StreamID{
		{1, 1}, {1, 2}, {1, 999999999}, {22, 22}, {69, 420},
		{9999, 9}, {9999, 10}, {10000, 0}, {10000, 99999999},
		{9999999, 9999999}, {9999999, 99999999},
	}
	for _, id := range ids {
		s.Insert(id, nil)
	}

	all := s.Range(MinStreamID, MaxStreamID)
	if len(all) != len(ids) {
		t.Fatalf("got %d entries, want %d", len(all), len(ids))
	}

	for i := range ids {
		got := s.Range(ids[i], MaxStreamID)
		if len(got) != len(ids)-i {
			t.Errorf("Range(%s, max) returned %d entries, want %d", ids[i], len(got), len(ids)-i)
		}
	}

	got := s.Range(StreamID{1, 3}, MaxStreamID)
	if len(got) != len(ids)-2 {
		t.Errorf("Range(1-3, max) returned %d entries, want %d", len(got), len(ids)-2)
	}

	got = s.Range(StreamID{10000000, 0}, MaxStreamID)
	if len(got) != 0 {
		t.Errorf("Range(10000000-0, max) returned %d entries, want 0", len(got))
	}
}

func TestStreamRangeComplex(t *testing.T) {
	s := &Stream{}
	for i, id := range testIDs {
		s.Insert(id, []FieldPair{{"n", fmt.Sprint(i)}})
	}

	randgen := rand.New(rand.NewSource(seed))
	for range 100 {
		from := StreamID{randgen.Uint64(), randgen.Uint64()}
		to := StreamID{randgen.Uint64(), randgen.Uint64()}
		if to.Less(from) {
			from, to = to, from
		}
		for _, e := range s.Range(from, to) {
			if e.ID.Less(from) || e.ID.Greater(to) {
				t.Errorf("entry %s outside requested range [%s, %s]", e.ID, from, to)
				return
			}
		}
	}
}

func TestStreamAfter(t *testing.T) {
	s := &Stream{}
	ids := []StreamID{{1, 1}, {1, 2}, {5, 0}, {5, 1}, {9, 9}}
	for _, id := range ids {
		s.Insert(id, nil)
	}

	got := s.After(StreamID{1, 1})
	if len(got) != len(ids)-1 {
		t.Fatalf("got %d entries after 1-1, want %d", len(got), len(ids)-1)
	}

	if got := s.After(MaxStreamID); len(got) != 0 {
		t.Errorf("After(MaxStreamID) returned %d entries, want 0", len(got))
	}

	if got := s.After(StreamID{0, 0}); len(got) != len(ids) {
		t.Errorf("After(0-0) returned %d entries, want %d", len(got), len(ids))
	}
}

func TestStreamNextIDAutogeneration(t *testing.T) {
	s := &Stream{}

	id := s.NextID(0, 0, true, true)
	if id == (StreamID{}) {
		t.Fatalf("full auto id on empty stream resolved to 0-0")
	}
	s.Insert(id, nil)

	id2 := s.NextID(id.MS, 0, false, true)
	if id2.MS != id.MS || id2.Seq != id.Seq+1 {
		t.Errorf("partial auto id = %s, want %d-%d", id2, id.MS, id.Seq+1)
	}

	id3 := (&Stream{}).NextID(0, 0, false, true)
	if id3 != (StreamID{0, 1}) {
		t.Errorf("partial auto id on empty stream for ms=0 should start at seq 1")
	}
}

func isEqual(a, b []StreamEntryOut) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func TestStreamRangeIsEqualHelper(t *testing.T) {
	s := &Stream{}
	s.Insert(StreamID{1, 1}, nil)
	got := s.Range(MinStreamID, MaxStreamID)
	want := []StreamEntryOut{{ID: StreamID{1, 1}}}
	if !isEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func BenchmarkStreamInsert(b *testing.B) {
	s := &Stream{}
	b.ResetTimer()
	for i := range b.N {
		id := testIDs[i%len(testIDs)]
		s.Insert(id, []FieldPair{{"field", "mycoolval"}})
	}
}

func BenchmarkStreamRangeAll(b *testing.B) {
	s := &Stream{}
	for i := range 1000 {
		s.Insert(testIDs[i], nil)
	}
	b.ResetTimer()
	for range b.N {
		s.Range(MinStreamID, MaxStreamID)
	}
}

func BenchmarkAnotherTrieInsert(b *testing.B) {
	trie := anothertrie.RuneTrie{}
	b.ResetTimer()
	for i := range b.N {
		id := testIDs[i%len(testIDs)]
		trie.Put(id.String(), "mycoolval")
	}
}

func BenchmarkAnotherTrieSearch(b *testing.B) {
	trie := anothertrie.RuneTrie{}
	for i := range b.N {
		id := testIDs[i%len(testIDs)]
		trie.Put(id.String(), "mycoolval")
	}
	b.ResetTimer()
	for i := range b.N {
		trie.Get(testIDs[i%len(testIDs)].String())
	}
}

func BenchmarkAnotherRadixInsert(b *testing.B) {
	rx := radix.New()
	b.ResetTimer()
	for i := range b.N {
		rx.Insert(testIDs[i%len(testIDs)].String(), "mycoolval")
	}
}

func BenchmarkAnotherRadixSearch(b *testing.B) {
	rx := radix.New()
	for i := range b.N {
		rx.Insert(testIDs[i%len(testIDs)].String(), "mycoolval")
	}
	b.ResetTimer()
	for i := range b.N {
		rx.Get(testIDs[i%len(testIDs)].String())
	}
}
