package dockerrt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vk/bootflow/internal/workflow"
)

func TestBinds(t *testing.T) {
	got := Binds([]workflow.Mount{
		{Source: "/dev", Target: "/dev"},
		{Source: "/etc/machine-id", Target: "/etc/machine-id", ReadOnly: true},
	})
	assert.Equal(t, []string{"/dev:/dev", "/etc/machine-id:/etc/machine-id:ro"}, got)
}

func TestBindsEmpty(t *testing.T) {
	assert.Nil(t, Binds(nil))
}

func TestEnvSliceIsSorted(t *testing.T) {
	got := envSlice(map[string]string{"ZED": "1", "ALPHA": "2", "MID": "3"})
	assert.Equal(t, []string{"ALPHA=2", "MID=3", "ZED=1"}, got)
}

func TestEnvSliceEmptyMapYieldsNil(t *testing.T) {
	assert.Nil(t, envSlice(nil))
	assert.Nil(t, envSlice(map[string]string{}))
}

func TestHandleID(t *testing.T) {
	h := &handle{id: "abc123", name: "format-disk"}
	assert.Equal(t, "abc123", h.ID())
}
