package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSource_ReturnsSameFraction(t *testing.T) {
	r := rand.New(NewFixedSource(0.25))

	assert.Equal(t, 0.25, r.Float64())
	assert.Equal(t, 0.25, r.Float64())
}

func TestFixedSource_Zero(t *testing.T) {
	r := rand.New(NewFixedSource(0))
	assert.Equal(t, 0.0, r.Float64())
}

func TestFixedSource_ThreadSafe(t *testing.T) {
	src := NewFixedSource(0.75)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			r := rand.New(src)
			for j := 0; j < 100; j++ {
				assert.Equal(t, 0.75, r.Float64())
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
