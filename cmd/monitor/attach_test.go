package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/Manu343726/vicemon/pkg/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Never ends, every line is "c"
type endlessInput struct{}

func (endlessInput) Read(p []byte) (int, error) {
	for i := range p {
		if i%2 == 0 {
			p[i] = 'c'
		} else {
			p[i] = '\n'
		}
	}

	return len(p) - len(p)%2, nil
}

func TestReadInput_LinesUntilEOF(t *testing.T) {
	lines, stop := readInput(strings.NewReader("s 2\n\nq\n"), nil)
	defer stop()

	var got []string
	for line := range lines {
		got = append(got, line)
	}

	assert.Equal(t, []string{"s 2", "", "q"}, got)
}

func TestReadInput_StopReleasesReader(t *testing.T) {
	lines, stop := readInput(endlessInput{}, nil)

	assert.Equal(t, "c", <-lines)
	stop()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestConsole_Complete(t *testing.T) {
	table := labels.New()
	table.Add(0xC000, "main")
	table.Add(0xC010, "mainloop")
	table.Add(0x0801, "basic")

	c := &console{table: table}

	assert.Equal(t, []string{"m", "mem"}, c.complete("m"))
	assert.Equal(t, []string{"b main", "b mainloop"}, c.complete("b ma"))
	assert.Equal(t, []string{"m basic", "m main", "m mainloop"}, c.complete("m "))
}
