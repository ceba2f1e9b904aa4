package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	A       int
	Timeout time.Duration
}

type sampleConf struct {
	A       int           `json:"a"`
	Timeout time.Duration `json:"timeout"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*sample]()
	require.NoError(t, reg.Register("s", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{A: c.A, Timeout: c.Timeout}, nil
	}))

	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"a": "3", "timeout": "2s"}})
	require.NoError(t, err)
	assert.Equal(t, 3, inst.A)
	assert.Equal(t, 2*time.Second, inst.Timeout)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	require.NoError(t, reg.Register("a", func(map[string]any) (int, error) { return 2, nil }))

	assert.ErrorIs(t, reg.Register("x", func(map[string]any) (int, error) { return 0, nil }), ErrDuplicate)
	assert.Error(t, reg.Register("z", nil))
	assert.Equal(t, []string{"a", "x"}, reg.Names())

	_, err := reg.Create(ModuleConfig{Type: "y"})
	assert.ErrorIs(t, err, ErrUnknownModule)
	assert.Contains(t, err.Error(), "[a x]")
}
