package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaInsertGet(t *testing.T) {
	var a arena[int]

	one, two := 1, 2
	index1, gen1 := a.insert(&one)
	index2, gen2 := a.insert(&two)
	require.NotEqual(t, index1, index2)
	require.Equal(t, 2, a.len())

	got, ok := a.get(index1, gen1)
	require.True(t, ok)
	require.Equal(t, 1, *got)

	got, ok = a.get(index2, gen2)
	require.True(t, ok)
	require.Equal(t, 2, *got)
}

func TestArenaStaleGeneration(t *testing.T) {
	var a arena[int]

	value := 7
	index, gen := a.insert(&value)

	removed, ok := a.remove(index, gen)
	require.True(t, ok)
	require.Equal(t, 7, *removed)
	require.Equal(t, 0, a.len())

	// The old handle must go stale immediately.
	_, ok = a.get(index, gen)
	require.False(t, ok)
	_, ok = a.remove(index, gen)
	require.False(t, ok)
}

func TestArenaSlotReuse(t *testing.T) {
	var a arena[int]

	first := 1
	index, gen := a.insert(&first)
	_, ok := a.remove(index, gen)
	require.True(t, ok)

	second := 2
	reusedIndex, newGen := a.insert(&second)
	require.Equal(t, index, reusedIndex)
	require.NotEqual(t, gen, newGen)

	// The recycled slot answers only to the new generation.
	_, ok = a.get(index, gen)
	require.False(t, ok)
	got, ok := a.get(reusedIndex, newGen)
	require.True(t, ok)
	require.Equal(t, 2, *got)
}

func TestArenaZeroGenerationNeverMatches(t *testing.T) {
	var a arena[int]

	value := 3
	index, _ := a.insert(&value)

	_, ok := a.get(index, 0)
	require.False(t, ok)
}

func TestArenaDrain(t *testing.T) {
	var a arena[int]

	for i := 0; i < 4; i++ {
		v := i
		a.insert(&v)
	}
	mid, midGen := a.insert(new(int))
	a.remove(mid, midGen)

	var seen []int
	a.drain(func(v *int) {
		seen = append(seen, *v)
	})
	require.Len(t, seen, 4)
	require.Equal(t, 0, a.len())

	// Draining twice is a no-op.
	a.drain(func(v *int) {
		t.Fatal("drain visited a slot twice")
	})
}

func TestHandleIsZero(t *testing.T) {
	require.True(t, BufferHandle{}.IsZero())
	require.True(t, TextureHandle{}.IsZero())
	require.False(t, BufferHandle{index: 0, generation: 1}.IsZero())
	require.False(t, TextureHandle{index: 3, generation: 2}.IsZero())
}
