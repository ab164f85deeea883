package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCServiceUnmarshal(t *testing.T) {
	var services []RPCService
	require.NoError(t, json.Unmarshal([]byte(`["disk",{"name":"pool","description":"Pools"}]`), &services))

	assert.Equal(t, []RPCService{{Name: "disk"}, {Name: "pool", Description: "Pools"}}, services)
}

func TestEventArgsAsMap(t *testing.T) {
	ev := Event{Name: "disk.attached", Args: json.RawMessage(`{"id":"ada0"}`)}
	args, err := ev.GetArgsAsMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "ada0"}, args)

	empty, err := Event{}.GetArgsAsMap()
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Event{Args: json.RawMessage(`[1]`)}.GetArgsAsMap()
	assert.Error(t, err)
}

func TestCloneDoesNotShareMemory(t *testing.T) {
	ev := Event{Args: json.RawMessage(`{"a":1}`)}
	c := ev.Clone()
	c.Args[2] = 'b'
	assert.Equal(t, `{"a":1}`, string(ev.Args))

	m := RPCMethod{Name: "disk.query", Schema: json.RawMessage(`{}`)}
	mc := m.Clone()
	mc.Schema[0] = '['
	assert.Equal(t, `{}`, string(m.Schema))
}

func TestEventKeepsUnmodelledFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bare record", input: `{"id":1}`},
		{name: "named with extras", input: `{"name":"task.updated","args":{"id":7},"collection":"task","msg":"changed"}`},
		{name: "non-string name", input: `{"name":5}`},
		{name: "null name", input: `{"name":null,"id":3}`},
		{name: "empty", input: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ev))

			data, err := json.Marshal(ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(data))
		})
	}
}

func TestEventModelledFieldsDecode(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"name":"disk.attached","args":{"id":"ada0"},"received_at":"2026-01-02T03:04:05Z","pool":"tank"}`), &ev))

	assert.Equal(t, "disk.attached", ev.Name)
	assert.JSONEq(t, `{"id":"ada0"}`, string(ev.Args))
	assert.Equal(t, 2026, ev.ReceivedAt.Year())
	assert.Equal(t, map[string]json.RawMessage{"pool": json.RawMessage(`"tank"`)}, ev.Extra)
}

func TestZeroReceivedAtIsOmitted(t *testing.T) {
	data, err := json.Marshal(Event{Name: "e"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"e"}`, string(data))
}

func TestDescriptorsKeepUnmodelledFields(t *testing.T) {
	var services []RPCService
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"volume","private":false,"methods_count":3}]`), &services))
	require.Len(t, services, 1)
	assert.Equal(t, "volume", services[0].Name)

	data, err := json.Marshal(services)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"volume","private":false,"methods_count":3}]`, string(data))

	var method RPCMethod
	require.NoError(t, json.Unmarshal([]byte(`{"name":"volume.query","schema":{"type":"object"},"job":true}`), &method))
	assert.JSONEq(t, `{"type":"object"}`, string(method.Schema))

	data, err = json.Marshal(method)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"volume.query","schema":{"type":"object"},"job":true}`, string(data))
}

func TestCloneCopiesExtra(t *testing.T) {
	ev := Event{Extra: map[string]json.RawMessage{"id": json.RawMessage(`1`)}}
	c := ev.Clone()
	c.Extra["id"][0] = '2'
	c.Extra["new"] = json.RawMessage(`true`)
	assert.Equal(t, map[string]json.RawMessage{"id": json.RawMessage(`1`)}, ev.Extra)

	svc := RPCService{Name: "volume", Extra: map[string]json.RawMessage{"private": json.RawMessage(`false`)}}
	sc := svc.Clone()
	sc.Extra["private"] = json.RawMessage(`true`)
	assert.Equal(t, json.RawMessage(`false`), svc.Extra["private"])
}
