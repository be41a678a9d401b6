package components

//go:generate go run github.com/pthm/hxlive/cmd/hxlive generate .

// Todo is one entry of a session's todo list.
type Todo struct {
	ID    int    `msgpack:"id"`
	Title string `msgpack:"title"`
	Done  bool   `msgpack:"done"`
}

// Filter values of the todo list.
const (
	FilterAll  = ""
	FilterOpen = "open"
	FilterDone = "done"
)

// AppState is the per-session state of the example.
//
//hxlive:state
type AppState struct {
	Count  int    `msgpack:"count"`
	Todos  []Todo `msgpack:"todos"`
	NextID int    `msgpack:"next_id"`
	Filter string `msgpack:"filter"`
}

// Visible returns the todos the current filter shows.
func (s AppState) Visible() []Todo {
	var out []Todo
	for _, t := range s.Todos {
		switch {
		case s.Filter == FilterOpen && t.Done:
		case s.Filter == FilterDone && !t.Done:
		default:
			out = append(out, t)
		}
	}
	return out
}

// DoneCount returns the number of finished todos.
func (s AppState) DoneCount() int {
	n := 0
	for _, t := range s.Todos {
		if t.Done {
			n++
		}
	}
	return n
}
