package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlags_ToConfigFlags(t *testing.T) {
	f := &Flags{
		ProjectPath: "/project",
		Tags:        []string{"smoke"},
		Workers:     4,
		Headed:      true,
		Bail:        true,
	}

	cf := f.ToConfigFlags()
	assert.Equal(t, "/project", cf.ProjectPath)
	assert.Equal(t, 4, cf.Workers)
	assert.True(t, cf.Headed)
	assert.True(t, cf.Bail)

	// Tags are copied, not shared
	f.Tags[0] = "changed"
	assert.Equal(t, []string{"smoke"}, cf.Tags)
}
