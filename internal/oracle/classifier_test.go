package oracle

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taoyao-code/atfuzz/internal/transport"
)

func TestClassify_Responded(t *testing.T) {
	assert.Equal(t, Stable, Classify(transport.NewResponded(nil)))
	assert.Equal(t, Stable, Classify(transport.NewResponded(make([]byte, transport.ResponseWindow))))
	assert.Equal(t, Stable, Classify(transport.NewResponded([]byte("ERROR\r\n"))))

	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 100; i++ {
		garbage := make([]byte, rng.IntN(transport.ResponseWindow+1))
		for j := range garbage {
			garbage[j] = byte(rng.UintN(256))
		}
		assert.Equal(t, Stable, Classify(transport.NewResponded(garbage)))
	}
}

func TestClassify_Silent(t *testing.T) {
	assert.Equal(t, Crashed, Classify(transport.NewSilent()))
	assert.Equal(t, Crashed, Classify(transport.Outcome{}))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "stable", Stable.String())
	assert.Equal(t, "crashed", Crashed.String())
}
