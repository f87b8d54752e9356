package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalStep_SetAndSetPath(t *testing.T) {
	s, err := UnmarshalStep([]byte(`{"do":"set","target":"count","value":{"expr":"lit","value":0}}`))
	require.NoError(t, err)
	set, ok := s.(*SetStep)
	require.True(t, ok)
	assert.Equal(t, "count", set.Target)

	s, err = UnmarshalStep([]byte(`{"do":"setPath","target":"user","path":["address","city"],"value":{"expr":"lit","value":"Oslo"}}`))
	require.NoError(t, err)
	setPath, ok := s.(*SetPathStep)
	require.True(t, ok)
	assert.Equal(t, "address.city", setPath.Path.String())
}

func TestUnmarshalStep_Update(t *testing.T) {
	s, err := UnmarshalStep([]byte(`{"do":"update","target":"posts","path":[0],"op":"toggle"}`))
	require.NoError(t, err)
	upd, ok := s.(*UpdateStep)
	require.True(t, ok)
	assert.Equal(t, UpdateToggle, upd.Op)
	assert.Nil(t, upd.Value)

	s, err = UnmarshalStep([]byte(`{"do":"update","target":"items","op":"splice","index":{"expr":"lit","value":1},"count":{"expr":"lit","value":2},"value":{"expr":"lit","value":["x"]}}`))
	require.NoError(t, err)
	upd = s.(*UpdateStep)
	require.NotNil(t, upd.Index)
	require.NotNil(t, upd.Count)
	require.NotNil(t, upd.Value)

	_, err = UnmarshalStep([]byte(`{"do":"update","target":"n","op":"degauss"}`))
	assert.ErrorContains(t, err, "unknown update op")
}

func TestUnmarshalStep_ControlFlow(t *testing.T) {
	s, err := UnmarshalStep([]byte(`{
		"do":"if",
		"if":{"expr":"var","name":"ready"},
		"then":[{"do":"set","target":"n","value":{"expr":"lit","value":1}}],
		"else":[{"do":"set","target":"n","value":{"expr":"lit","value":2}}]
	}`))
	require.NoError(t, err)
	branch, ok := s.(*IfStep)
	require.True(t, ok)
	assert.Len(t, branch.Then, 1)
	assert.Len(t, branch.Else, 1)

	s, err = UnmarshalStep([]byte(`{"do":"delay","ms":{"expr":"lit","value":100},"then":[{"do":"set","target":"n","value":{"expr":"lit","value":1}}]}`))
	require.NoError(t, err)
	delay, ok := s.(*DelayStep)
	require.True(t, ok)
	assert.Len(t, delay.Then, 1)
}

func TestUnmarshalStep_TimersAndFetch(t *testing.T) {
	s, err := UnmarshalStep([]byte(`{
		"do":"interval","ms":{"expr":"lit","value":1000},
		"handle":{"target":"timers","path":["tick"]},
		"then":[{"do":"update","target":"count","op":"increment"}]
	}`))
	require.NoError(t, err)
	interval, ok := s.(*IntervalStep)
	require.True(t, ok)
	assert.Equal(t, "timers", interval.Handle.Target)

	_, err = UnmarshalStep([]byte(`{"do":"interval","ms":{"expr":"lit","value":10},"handle":{}}`))
	assert.ErrorContains(t, err, "handle slot")

	s, err = UnmarshalStep([]byte(`{"do":"cancel","handle":{"expr":"var","name":"timers","path":["tick"]}}`))
	require.NoError(t, err)
	_, ok = s.(*CancelStep)
	assert.True(t, ok)

	s, err = UnmarshalStep([]byte(`{
		"do":"fetch","url":{"expr":"lit","value":"/api/posts"},
		"onSuccess":[{"do":"set","target":"posts","value":{"expr":"local","name":"response"}}],
		"onError":[{"do":"set","target":"error","value":{"expr":"local","name":"response"}}]
	}`))
	require.NoError(t, err)
	fetch, ok := s.(*FetchStep)
	require.True(t, ok)
	assert.Len(t, fetch.OnSuccess, 1)
	assert.Len(t, fetch.OnError, 1)
}

func TestUnmarshalStep_Errors(t *testing.T) {
	_, err := UnmarshalStep([]byte(`{"target":"n"}`))
	assert.ErrorContains(t, err, "discriminator")

	_, err = UnmarshalStep([]byte(`{"do":"warp"}`))
	assert.ErrorContains(t, err, "unknown step kind")

	_, err = UnmarshalStep([]byte(`{"do":"set","value":{"expr":"lit","value":0}}`))
	assert.ErrorContains(t, err, "requires a target")
}
