package views

import "github.com/eringen/pubadmin"

// Site holds the settings shared by every admin page.
type Site struct {
	Name string // shown in the page title (default "Blog admin")
}

func (s Site) title() string {
	if s.Name == "" {
		return "Blog admin"
	}
	return s.Name
}

// dashboardData is the template input for the dashboard.
type dashboardData struct {
	Site  string
	Page  pubadmin.AdminPage
	Label string // heading of the editor form
}

type loginData struct {
	Site      string
	Message   string
	CSRFToken string
}
