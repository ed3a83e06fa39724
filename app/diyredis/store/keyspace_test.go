package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetString(t *testing.T) {
	ks := New()
	ks.SetString("k", "v", 0)

	got, ok, err := ks.GetString("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
	assert.Equal(t, KindString, ks.TypeOf("k"))
}

func TestGetStringMissing(t *testing.T) {
	ks := New()
	_, ok, err := ks.GetString("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStringExpiry(t *testing.T) {
	ks := New()
	ks.SetString("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok, err := ks.GetString("k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, KindNone, ks.TypeOf("k"))
}

func TestIncr(t *testing.T) {
	ks := New()

	n, err := ks.Incr("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = ks.Incr("counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIncrNotAnInteger(t *testing.T) {
	ks := New()
	ks.SetString("k", "not a number", 0)

	_, err := ks.Incr("k")
	require.Error(t, err)
	assert.True(t, IsNotInteger(err))
}

func TestWrongType(t *testing.T) {
	ks := New()
	ks.SetString("k", "v", 0)

	_, err := ks.RPush("k", []string{"a"})
	var wt ErrWrongType
	assert.ErrorAs(t, err, &wt)
}

func TestRPushLPushAndRange(t *testing.T) {
	ks := New()

	n, err := ks.RPush("list", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ks.LPush("list", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := ks.LRange("list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "a", "b", "c"}, got)
}

func TestLRangeNegativeIndices(t *testing.T) {
	ks := New()
	ks.RPush("list", []string{"a", "b", "c", "d", "e"})

	got, err := ks.LRange("list", -3, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, got)

	got, err = ks.LRange("list", -100, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	got, err = ks.LRange("list", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}

func TestLPopOneAndCount(t *testing.T) {
	ks := New()
	ks.RPush("list", []string{"a", "b", "c"})

	v, ok, err := ks.LPopOne("list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	popped, err := ks.LPopCount("list", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, popped)

	assert.Equal(t, KindNone, ks.TypeOf("list"))
}

func TestLPopOneMissingKey(t *testing.T) {
	ks := New()
	_, ok, err := ks.LPopOne("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLLen(t *testing.T) {
	ks := New()
	ks.RPush("list", []string{"a", "b"})

	n, err := ks.LLen("list")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ks.LLen("nope")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKeysSkipsExpired(t *testing.T) {
	ks := New()
	ks.SetString("a", "1", 0)
	ks.SetString("b", "2", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	keys := ks.Keys()
	assert.Equal(t, []string{"a"}, keys)
}

func TestXAddAndRange(t *testing.T) {
	ks := New()

	id1, err := ks.XAdd("s", 1, 1, false, false, []FieldPair{{Name: "a", Value: "1"}})
	require.NoError(t, err)
	assert.Equal(t, StreamID{1, 1}, id1)

	id2, err := ks.XAdd("s", 0, 0, false, true, []FieldPair{{Name: "a", Value: "2"}})
	require.NoError(t, err)
	assert.True(t, id2.Greater(id1))

	entries, err := ks.XRange("s", MinStreamID, MaxStreamID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestXAddRejectsZero(t *testing.T) {
	ks := New()
	_, err := ks.XAdd("s", 0, 0, false, false, nil)
	assert.Equal(t, ErrStreamIDZero, err)
}

func TestXAddRejectsSmallerID(t *testing.T) {
	ks := New()
	_, err := ks.XAdd("s", 5, 5, false, false, nil)
	require.NoError(t, err)

	_, err = ks.XAdd("s", 5, 5, false, false, nil)
	assert.Equal(t, ErrStreamIDTooSmall, err)
}

func TestXAddFailureDoesNotCreateEmptyStream(t *testing.T) {
	ks := New()
	_, err := ks.XAdd("s", 0, 0, false, false, nil)
	require.Error(t, err)
	assert.Equal(t, KindNone, ks.TypeOf("s"))
}

func TestXReadAfter(t *testing.T) {
	ks := New()
	id1, _ := ks.XAdd("s", 1, 0, false, false, nil)
	_, _ = ks.XAdd("s", 2, 0, false, false, nil)

	got, err := ks.XReadAfter("s", id1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
