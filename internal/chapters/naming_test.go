package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGenericName(t *testing.T) {
	generic := []string{"", "  ", "Chapter 1", "chapter_03", "Track 12", "Part 2", "Chapter One", "7", "7.", "7 -"}
	for _, name := range generic {
		assert.True(t, IsGenericName(name), name)
	}

	meaningful := []string{"The Allegory of the Cave", "Book I", "Prologue", "Chapter 1: Arrival"}
	for _, name := range meaningful {
		assert.False(t, IsGenericName(name), name)
	}
}

func TestDisplayTitle(t *testing.T) {
	numbered := File{Name: "chapter_2.mp3", Ordinal: 2, HasOrdinal: true}
	loose := File{Name: "intro.mp3"}

	assert.Equal(t, "The Cave", DisplayTitle(numbered, " The Cave "))
	assert.Equal(t, "Chapter 2", DisplayTitle(numbered, "Track 2"))
	assert.Equal(t, "intro", DisplayTitle(loose, ""))
}
