// Package views provides the default admin templates. Projects that want
// their own markup pass their own pubadmin.ViewFuncs instead.
package views

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/pubadmin"
)

var pages = template.Must(template.New("pages").Funcs(funcs).Parse(`
{{define "head"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;color:#1c1917;background:#fafaf9}
header{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;border-bottom:1px solid #d6d3d1}
main{display:grid;grid-template-columns:16rem 1fr 1fr;gap:1.5rem;padding:1.5rem}
nav ul{list-style:none;padding:0;margin:0}
nav li{display:flex;justify-content:space-between;gap:.5rem;padding:.25rem 0}
input[type=text],input[type=password],textarea{width:100%;box-sizing:border-box;padding:.5rem;border:1px solid #a8a29e;border-radius:4px;font:inherit}
textarea{min-height:24rem;font-family:ui-monospace,monospace}
.msg{padding:.5rem 1rem;border-radius:4px;margin-bottom:1rem}
.error{background:#fee2e2;color:#991b1b}
.ok{background:#dcfce7;color:#166534}
#preview{border:1px solid #d6d3d1;border-radius:4px;padding:1rem;background:#fff;overflow:auto}
.login{max-width:24rem;margin:4rem auto}
</style>
</head>
<body>{{end}}

{{define "login"}}{{template "head" .Site}}
<form class="login" method="post" action="/admin/login/">
<h1>{{.Site}}</h1>
{{with .Message}}<p class="msg error">{{.}}</p>{{end}}
<input type="hidden" name="_csrf" value="{{.CSRFToken}}">
<label>Credential <input type="password" name="credential" autocomplete="current-password" autofocus></label>
<p><button type="submit">Sign in</button></p>
</form>
</body></html>{{end}}

{{define "dashboard"}}{{template "head" .Site}}
<meta name="csrf-token" content="{{.Page.CSRFToken}}">
<header>
<strong>{{.Site}}</strong>
<span>{{with .Page.Identity.Name}}{{.}}{{else}}{{.Page.Identity.Login}}{{end}} · {{.Page.Backend}}
<form method="post" action="/admin/logout/" style="display:inline">
<input type="hidden" name="_csrf" value="{{.Page.CSRFToken}}">
<button type="submit">Sign out</button>
</form></span>
</header>
<main>
<nav>
<form method="post" action="/admin/new/">
<input type="hidden" name="_csrf" value="{{.Page.CSRFToken}}">
<button type="submit">New post</button>
</form>
<ul>
{{range .Page.Posts}}<li>
<a href="/admin/post/{{pathEscape .Key}}/">{{.Label}}</a>
<form method="post" action="/admin/delete/{{pathEscape .Key}}/" onsubmit="return confirm('Delete this post?')">
<input type="hidden" name="_csrf" value="{{$.Page.CSRFToken}}">
<input type="hidden" name="revision" value="{{.Revision}}">
<input type="hidden" name="confirm" value="yes">
<button type="submit" title="Delete">×</button>
</form>
</li>{{else}}<li>No posts yet.</li>{{end}}
</ul>
</nav>
<section>
{{with .Page.Message}}<p class="msg error">{{.}}</p>{{end}}
{{with .Page.Notice}}<p class="msg ok">{{notice .}}</p>{{end}}
<h2>{{.Label}}</h2>
<form id="editor" method="post" action="/admin/save/">
<input type="hidden" name="_csrf" value="{{.Page.CSRFToken}}">
<p><label>Title <input type="text" name="title" value="{{.Page.Draft.Title}}"></label></p>
<p><label>Tags <input type="text" name="tags" value="{{.Page.Draft.TagsText}}" placeholder="go, web"></label></p>
<p><label>Content <textarea name="body" id="body">{{.Page.Draft.Body}}</textarea></label></p>
<p><input type="file" id="image" accept="image/*"> <button type="submit">Save</button></p>
</form>
</section>
<section>
<h2>Preview</h2>
<div id="preview">{{trusted .Page.PreviewHTML}}</div>
</section>
</main>
<script>
(function () {
  var form = document.getElementById("editor");
  var body = document.getElementById("body");
  var preview = document.getElementById("preview");
  var token = document.querySelector('meta[name="csrf-token"]').content;
  var seq = 0;
  function send(url, data) {
    return fetch(url, {method: "POST", body: data, headers: {"HX-Request": "true", "X-CSRF-Token": token}});
  }
  form.addEventListener("input", function () {
    var n = ++seq;
    send("/admin/draft/", new FormData(form)).then(function (r) { return r.text(); }).then(function (html) {
      if (n === seq) { preview.innerHTML = html; }
    });
  });
  document.getElementById("image").addEventListener("change", function (ev) {
    var file = ev.target.files[0];
    if (!file) { return; }
    var data = new FormData();
    data.append("image", file);
    send("/admin/images/upload/", data).then(function (r) { return r.text(); }).then(function (snippet) {
      var at = body.selectionStart;
      body.value = body.value.slice(0, at) + snippet + body.value.slice(at);
      body.dispatchEvent(new Event("input", {bubbles: true}));
    });
  });
})();
</script>
</body></html>{{end}}

{{define "notfound"}}{{template "head" "Not found"}}
<p class="login">Page not found. <a href="/admin/">Back to the admin</a>.</p>
</body></html>{{end}}

{{define "servererror"}}{{template "head" "Error"}}
<p class="login">Something went wrong. <a href="/admin/">Back to the admin</a>.</p>
</body></html>{{end}}
`))

// execute wraps a named template as a templ.Component.
func execute(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Login renders the sign-in form.
func Login(site Site) func(message, csrfToken string) templ.Component {
	return func(message, csrfToken string) templ.Component {
		return execute("login", loginData{Site: site.title(), Message: message, CSRFToken: csrfToken})
	}
}

// Dashboard renders the post list, the editor and the preview pane.
func Dashboard(site Site) func(page pubadmin.AdminPage) templ.Component {
	return func(page pubadmin.AdminPage) templ.Component {
		return execute("dashboard", dashboardData{Site: site.title(), Page: page, Label: editorLabel(page.Snapshot)})
	}
}

// Preview renders the preview fragment returned to live edits.
func Preview(previewHTML string) templ.Component {
	return templ.Raw(previewHTML)
}

func NotFound() templ.Component    { return execute("notfound", nil) }
func ServerError() templ.Component { return execute("servererror", nil) }

// Default returns the stock admin views.
func Default(site Site) pubadmin.ViewFuncs {
	return pubadmin.ViewFuncs{
		AdminLogin:     Login(site),
		AdminDashboard: Dashboard(site),
		AdminPreview:   Preview,
		NotFound:       NotFound,
		ServerError:    ServerError,
	}
}
