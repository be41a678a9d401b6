package components

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/lib/node"
)

var filters = []struct{ value, label string }{
	{FilterAll, "All"},
	{FilterOpen, "Open"},
	{FilterDone, "Done"},
}

func todosView(b *hxlive.Builder, _ struct{}) error {
	form := b.Request().Form()

	b.With(b.El(node.Form, node.Class("add-todo")), func() {
		b.El(node.Input, node.Name("title"), node.Placeholder("What needs doing?"))
		add := b.El(node.Button, node.ID("todo-add"), node.Type("submit"), node.Text("Add"))
		if _, ok := b.Triggered(add); !ok {
			return
		}
		title := strings.TrimSpace(form.String("title"))
		if title == "" {
			b.Flash(hxlive.FlashWarning, "A todo needs a title.")
			return
		}
		err := hxlive.Update(b, func(s *AppState) error {
			s.NextID++
			s.Todos = append(s.Todos, Todo{ID: s.NextID, Title: title})
			return nil
		})
		if err == nil {
			b.Flash(hxlive.FlashSuccess, "Added "+title+".")
			b.Trigger("todo:added", map[string]any{"title": title})
		}
	})

	s, err := hxlive.Get[AppState](b)
	if err != nil {
		return err
	}

	sel := b.El(node.Select, node.ID("todo-filter"), node.Name("filter"), node.Value(s.Filter))
	b.With(sel, func() {
		for _, f := range filters {
			b.El(node.Option, node.Value(f.value), node.Text(f.label))
		}
	})
	if _, ok := b.Triggered(sel); ok {
		filter := form.String("filter")
		if err := hxlive.Update(b, func(s *AppState) error {
			s.Filter = filter
			return nil
		}); err != nil {
			return err
		}
		s.Filter = filter
	}

	visible := s.Visible()
	if len(visible) == 0 {
		b.El(node.P, node.Class("empty"), node.Text("Nothing to show."))
		return nil
	}

	b.With(b.El(node.Ul, node.Class("todos")), func() {
		for _, t := range visible {
			b.With(b.El(node.Li, node.Class(doneClass(t.Done))), func() {
				toggle := b.El(node.Input,
					node.Type("checkbox"),
					node.ID(fmt.Sprintf("todo-%d", t.ID)),
					node.Checked(t.Done),
					node.ReloadOn("change"),
				)
				b.El(node.Span, node.Text(t.Title))
				remove := b.El(node.Button, node.ID(fmt.Sprintf("todo-del-%d", t.ID)), node.Text("×"))

				if _, ok := b.Triggered(toggle); ok {
					_ = hxlive.Update(b, func(s *AppState) error {
						if i := indexOf(s.Todos, t.ID); i >= 0 {
							s.Todos[i].Done = !s.Todos[i].Done
						}
						return nil
					})
				}
				if _, ok := b.Triggered(remove); ok {
					_ = hxlive.Update(b, func(s *AppState) error {
						if i := indexOf(s.Todos, t.ID); i >= 0 {
							s.Todos = slices.Delete(s.Todos, i, i+1)
						}
						return nil
					})
				}
			})
		}
	})
	return nil
}

func indexOf(todos []Todo, id int) int {
	return slices.IndexFunc(todos, func(t Todo) bool { return t.ID == id })
}

func doneClass(done bool) string {
	if done {
		return "done"
	}
	return ""
}
