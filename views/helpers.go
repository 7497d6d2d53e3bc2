package views

import (
	"html/template"

	"github.com/eringen/pubadmin"
)

// editorLabel names what the form is doing for the current state.
func editorLabel(s pubadmin.Snapshot) string {
	if s.State == pubadmin.Editing {
		return "Editing " + s.Target.Key
	}
	return "New post"
}

// noticeText turns a controller notice into a sentence.
func noticeText(n string) string {
	switch n {
	case "saved":
		return "Post saved."
	case "deleted":
		return "Post deleted."
	default:
		return n
	}
}

var funcs = template.FuncMap{
	"pathEscape": pubadmin.PathEscape,
	"notice":     noticeText,
	"trusted":    func(s string) template.HTML { return template.HTML(s) },
}
