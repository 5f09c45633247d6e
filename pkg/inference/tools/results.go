package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/planexec/pkg/tasks"
	"github.com/pkg/errors"
)

// ResultKind is the declared shape of a tool's output. The executor renders
// results and applies task-list replacement by kind, never by tool name.
type ResultKind string

const (
	ResultKindText     ResultKind = "text"
	ResultKindTaskList ResultKind = "task-list"
	ResultKindSearch   ResultKind = "search-results"
)

// SearchResult is one ranked hit of a search-style tool.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Result is the tagged output of one tool invocation.
type Result struct {
	Kind     ResultKind     `json:"kind"`
	Text     string         `json:"text,omitempty"`
	TaskList tasks.List     `json:"task_list,omitempty"`
	Search   []SearchResult `json:"search,omitempty"`
}

func TextResult(text string) Result {
	return Result{Kind: ResultKindText, Text: text}
}

func TaskListResult(list tasks.List) Result {
	return Result{Kind: ResultKindTaskList, TaskList: list.Clone()}
}

func SearchResults(results []SearchResult) Result {
	return Result{Kind: ResultKindSearch, Search: append([]SearchResult(nil), results...)}
}

// NoResultsText is rendered for a search that returned nothing.
const NoResultsText = "No results found."

// Render formats the result as the text of a tool message.
//
// A task list renders one "Item: <content> Status: <status>" line per step.
// Search results render only the first hit.
func (r Result) Render() string {
	switch r.Kind {
	case ResultKindTaskList:
		return r.TaskList.Report()
	case ResultKindSearch:
		if len(r.Search) == 0 {
			return NoResultsText
		}
		first := r.Search[0]
		return fmt.Sprintf("Title: %s\nURL: %s\nContent: %s",
			first.Title, first.URL, strings.TrimSpace(first.Content))
	default:
		return r.Text
	}
}

// ToResult converts the raw output of a tool function into a Result of the
// declared kind. Values that already are a Result keep their own kind.
func ToResult(kind ResultKind, out interface{}) (Result, error) {
	switch v := out.(type) {
	case Result:
		return v, nil
	case *Result:
		if v == nil {
			return Result{}, errors.New("tool returned a nil result")
		}
		return *v, nil
	}

	switch kind {
	case ResultKindTaskList:
		list, err := toTaskList(out)
		if err != nil {
			return Result{}, err
		}
		return TaskListResult(list), nil
	case ResultKindSearch:
		hits, err := toSearchResults(out)
		if err != nil {
			return Result{}, err
		}
		return SearchResults(hits), nil
	default:
		text, err := toText(out)
		if err != nil {
			return Result{}, err
		}
		return TextResult(text), nil
	}
}

func toTaskList(out interface{}) (tasks.List, error) {
	switch v := out.(type) {
	case tasks.List:
		return v, nil
	case *tasks.List:
		if v == nil {
			return tasks.List{}, errors.New("tool returned a nil task list")
		}
		return *v, nil
	case []tasks.Step:
		return tasks.NewList(v...), nil
	}
	var list tasks.List
	if err := redecode(out, &list); err != nil {
		return tasks.List{}, errors.Wrap(err, "tool output is not a task list")
	}
	return list, nil
}

func toSearchResults(out interface{}) ([]SearchResult, error) {
	switch v := out.(type) {
	case []SearchResult:
		return v, nil
	case nil:
		return nil, nil
	}
	var hits []SearchResult
	if err := redecode(out, &hits); err != nil {
		return nil, errors.Wrap(err, "tool output is not a list of search results")
	}
	return hits, nil
}

func toText(out interface{}) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "encode tool output")
	}
	return string(b), nil
}

func redecode(in interface{}, out interface{}) error {
	var b []byte
	switch v := in.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case json.RawMessage:
		b = v
	default:
		var err error
		b, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(b, out)
}
