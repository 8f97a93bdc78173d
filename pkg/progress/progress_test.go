package progress_test

import (
	"testing"

	"github.com/gitprivacy/git-privacy/pkg/progress"
	"github.com/stretchr/testify/assert"
)

func TestProgress_Increment(t *testing.T) {
	var calls []int
	p := progress.New("redate", 3, func(op string, current, total int, message string) {
		assert.Equal(t, "redate", op)
		assert.Equal(t, 3, total)
		calls = append(calls, current)
	})

	p.Increment("a")
	p.Increment("b")
	p.Done("done")

	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.Equal(t, 3, p.Current())
}

func TestProgress_NilCallback(t *testing.T) {
	p := progress.New("store", 2, nil)
	p.Increment("")
	assert.Equal(t, 1, p.Current())
}
