package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrompt(t *testing.T) {
	assert.Equal(t, "hello", stripPrompt("Draw[12]> hello"))
	assert.Equal(t, "hello", stripPrompt("Draw[1]> Draw[2]> hello"))
	assert.Equal(t, "no prompt here", stripPrompt("no prompt here"))
	assert.Equal(t, "", stripPrompt(""))
}

func TestParseTriangleAndNodeCounts(t *testing.T) {
	out := "This shape contains 12 triangles.\n" +
		"                    8 nodes.\n" +
		"Maximal deflection 0.000425"

	assert.Equal(t, 12, parseTriangleCount(out))
	assert.Equal(t, 8, parseNodeCount(out))
}

func TestParseTriangleCount_NoTriangulation(t *testing.T) {
	out := "This shape contains no triangulation."

	assert.Equal(t, 0, parseTriangleCount(out))
	assert.Equal(t, 0, parseNodeCount(out))
}

func TestParseMeshStatus(t *testing.T) {
	t.Run("no error status", func(t *testing.T) {
		status, ok := parseMeshStatus("Incremental Algorithm is used\nMeshing statuses: NoError")
		assert.True(t, ok)
		assert.Equal(t, "NoError", status)
	})

	t.Run("failure status", func(t *testing.T) {
		status, ok := parseMeshStatus("Meshing statuses: Failure")
		assert.True(t, ok)
		assert.Equal(t, "Failure", status)
	})

	t.Run("older kernels print none", func(t *testing.T) {
		_, ok := parseMeshStatus("Incremental Algorithm is used")
		assert.False(t, ok)
	})
}

func TestParseShapeCount(t *testing.T) {
	out := "Number of shapes in sh_1\n" +
		" VERTEX    : 8\n" +
		" EDGE      : 18\n" +
		" WIRE      : 6\n" +
		" FACE      : 6\n" +
		" SHELL     : 1\n" +
		" SOLID     : 1\n" +
		" COMPSOLID : 0\n" +
		" COMPOUND  : 0\n" +
		" SHAPE     : 40"

	assert.Equal(t, 6, parseShapeCount(out, "FACE"))
	assert.Equal(t, 1, parseShapeCount(out, "SOLID"))
	assert.Equal(t, 0, parseShapeCount(out, "COMPOUND"))
	assert.Equal(t, 0, parseShapeCount(out, "MISSING"))
}

func TestParseRootCount(t *testing.T) {
	assert.Equal(t, 1, parseRootCount("Transferred 1 root to shape sh_1"))
	assert.Equal(t, 3, parseRootCount("3 roots transferred"))
	assert.Equal(t, 0, parseRootCount("nothing useful"))
}
