package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStep_IsPending(t *testing.T) {
	s := NewStep("search for X")
	require.Equal(t, "search for X", s.Content)
	require.Equal(t, StatusPending, s.Status)
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"":            StatusPending,
		"todo":        StatusPending,
		"PENDING":     StatusPending,
		"in_progress": StatusInProgress,
		"in-progress": StatusInProgress,
		"done":        StatusDone,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("blocked")
	require.Error(t, err)
}

func TestStep_UnmarshalAcceptsLegacyTodo(t *testing.T) {
	var l List
	err := json.Unmarshal([]byte(`{"todo":[{"step":"a","status":"todo"},{"step":"b","status":"done"}]}`), &l)
	require.NoError(t, err)
	require.Equal(t, []Step{{Content: "a", Status: StatusPending}, {Content: "b", Status: StatusDone}}, l.Items)
}

func TestList_Renderings(t *testing.T) {
	l := NewList(NewStep("find the population"), Step{Content: "compare", Status: StatusInProgress})

	assert.Equal(t, "- find the population [pending]\n- compare [in_progress]", l.Bullets())
	assert.Equal(t, "Item: find the population Status: pending\nItem: compare Status: in_progress", l.Report())
	assert.Equal(t, "", List{}.Bullets())
}

func TestList_CloneDoesNotAlias(t *testing.T) {
	l := NewList(NewStep("a"))
	c := l.Clone()
	c.Items[0].Status = StatusDone
	require.Equal(t, StatusPending, l.Items[0].Status)
}

func TestList_Validate(t *testing.T) {
	require.NoError(t, NewList(NewStep("a")).Validate())
	require.Error(t, NewList(Step{Content: " ", Status: StatusDone}).Validate())
	require.Error(t, NewList(Step{Content: "a", Status: "blocked"}).Validate())
}

func TestSchema_DescribesTodoArray(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)
	require.NotContains(t, s, "$schema")

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	todo, ok := props["todo"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "array", todo["type"])
}
