package http

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sagarc03/sitehost"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const stylesheet = `
*{box-sizing:border-box}
body{margin:0;font-family:system-ui,-apple-system,"Segoe UI",sans-serif;color:#1f2328;background:#f6f8fa}
a{color:#0969da}
.topbar{display:flex;justify-content:space-between;align-items:center;padding:12px 24px;background:#fff;border-bottom:1px solid #d0d7de}
.topbar nav a{margin-right:16px}
.layout{max-width:960px;margin:0 auto;padding:24px}
.narrow{max-width:420px}
.card{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:16px;margin-bottom:16px}
.flash{padding:12px 16px;border-radius:6px;margin-bottom:16px}
.flash-error{background:#ffebe9;border:1px solid #ff818266}
.flash-notice{background:#dafbe1;border:1px solid #4ac26b66}
label{display:block;font-weight:600;margin:12px 0 4px}
input[type=text],input[type=email],input[type=password],input[type=file]{width:100%;padding:6px 8px}
button{padding:6px 14px;cursor:pointer}
.btn-danger{color:#cf222e}
.inline{display:inline}
table{width:100%;border-collapse:collapse}
th,td{text-align:left;padding:8px;border-bottom:1px solid #d0d7de}
.muted{color:#656d76;font-size:.9em}
.site-frame{position:fixed;inset:0;width:100%;height:100%;border:0}
`

func renderHTML(w http.ResponseWriter, status int, node Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func document(title string, body ...Node) Node {
	return Doctype(HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | sitehost")),
			Link(Rel("icon"), Href("data:,")),
			StyleEl(Raw(stylesheet)),
		),
		Body(Group(body)),
	))
}

// appPage wraps a console screen with the navigation bar of a signed-in
// principal.
func appPage(r *http.Request, title string, p sitehost.Principal, body ...Node) Node {
	who := p.Username
	if who == "" {
		who = p.Email
	}

	return document(title,
		Header(
			Class("topbar"),
			Nav(
				A(Href("/dashboard"), Text("Dashboard")),
				If(p.HasRole(sitehost.RoleAdmin), A(Href("/admin"), Text("Admin"))),
			),
			Div(
				Span(Class("muted"), Text("Signed in as "+who+" ")),
				Form(
					Class("inline"),
					Method("post"),
					Action("/auth/logout"),
					csrfField(r),
					Button(Type("submit"), Text("Sign out")),
				),
			),
		),
		Main(
			Class("layout"),
			H1(Text(title)),
			flash(r),
			Group(body),
		),
	)
}

func errorPage(title, message string) Node {
	return document(title,
		Main(
			Class("layout narrow"),
			H1(Text(title)),
			P(Text(message)),
			P(A(Href("/"), Text("Back to home"))),
		),
	)
}

// flash renders the ?error= and ?notice= messages set by redirects.
func flash(r *http.Request) Node {
	q := r.URL.Query()
	return Div(
		If(q.Get("error") != "", Div(Class("flash flash-error"), Text(q.Get("error")))),
		If(q.Get("notice") != "", Div(Class("flash flash-notice"), Text(q.Get("notice")))),
	)
}

func formError(msg string) Node {
	return If(msg != "", Div(Class("flash flash-error"), Text(msg)))
}

func homePage(p sitehost.Principal, setupRequired bool) Node {
	return document("Home",
		Main(
			Class("layout narrow"),
			H1(Text("sitehost")),
			P(Text("Upload an HTML page and share it at a name of your choice.")),
			Div(
				Class("card"),
				If(p.IsAuthenticated(), A(Href("/dashboard"), Text("Go to your dashboard"))),
				If(!p.IsAuthenticated(), A(Href("/auth"), Text("Sign in"))),
			),
			If(setupRequired, Div(
				Class("card"),
				P(Text("No administrator exists yet.")),
				A(Href("/setup"), Text("Run first-time setup")),
			)),
		),
	)
}

func signInPage(r *http.Request, email, errMsg string) Node {
	return document("Sign in",
		Main(
			Class("layout narrow"),
			H1(Text("Sign in")),
			flash(r),
			formError(errMsg),
			Form(
				Class("card"),
				Method("post"),
				Action("/auth"),
				csrfField(r),
				Label(For("email"), Text("Email")),
				Input(ID("email"), Type("email"), Name("email"), Value(email), Required(), Attr("autocomplete", "username")),
				Label(For("password"), Text("Password")),
				Input(ID("password"), Type("password"), Name("password"), Required(), Attr("autocomplete", "current-password")),
				P(Button(Type("submit"), Text("Sign in"))),
			),
		),
	)
}

func setupPage(r *http.Request, email, username, errMsg string) Node {
	return document("First-time setup",
		Main(
			Class("layout narrow"),
			H1(Text("Create the administrator")),
			P(Class("muted"), Text("This account can manage every site and create users. Setup closes once it exists.")),
			formError(errMsg),
			Form(
				Class("card"),
				Method("post"),
				Action("/setup"),
				csrfField(r),
				Label(For("username"), Text("Username")),
				Input(ID("username"), Type("text"), Name("username"), Value(username)),
				Label(For("email"), Text("Email")),
				Input(ID("email"), Type("email"), Name("email"), Value(email), Required()),
				Label(For("password"), Text("Password")),
				Input(ID("password"), Type("password"), Name("password"), Required(), Attr("autocomplete", "new-password")),
				P(Button(Type("submit"), Text("Create administrator"))),
			),
		),
	)
}

func uploadForm(r *http.Request) Node {
	return Form(
		Class("card"),
		Method("post"),
		Action("/dashboard/sites"),
		Attr("enctype", "multipart/form-data"),
		csrfField(r),
		H2(Text("Publish a site")),
		Label(For("site_name"), Text("Site name")),
		Input(ID("site_name"), Type("text"), Name("site_name"), Required(), Placeholder("my-site")),
		Label(For("file"), Text("File (.html or .zip)")),
		Input(ID("file"), Type("file"), Name("file"), Required(), Attr("accept", ".html,.zip,text/html,application/zip")),
		P(Button(Type("submit"), Text("Upload"))),
	)
}

func dashboardPage(r *http.Request, p sitehost.Principal, result sitehost.ListResult) Node {
	return appPage(r, "Your sites", p,
		uploadForm(r),
		Div(
			Class("card"),
			sitesTable(r, result.Items, "/dashboard/sites/", false),
			pager("/dashboard", result.NextCursor),
		),
	)
}

func adminPage(r *http.Request, p sitehost.Principal, result sitehost.ListResult) Node {
	return appPage(r, "Admin console", p,
		Form(
			Class("card"),
			Method("post"),
			Action("/admin/users"),
			csrfField(r),
			H2(Text("Create user")),
			Label(For("username"), Text("Username")),
			Input(ID("username"), Type("text"), Name("username")),
			Label(For("email"), Text("Email")),
			Input(ID("email"), Type("email"), Name("email"), Required()),
			Label(For("password"), Text("Password")),
			Input(ID("password"), Type("password"), Name("password"), Required(), Attr("autocomplete", "new-password")),
			P(Button(Type("submit"), Text("Create user"))),
		),
		Div(
			Class("card"),
			H2(Text("All sites")),
			sitesTable(r, result.Items, "/admin/sites/", true),
			pager("/admin", result.NextCursor),
		),
	)
}

func sitesTable(r *http.Request, sites []sitehost.Site, deleteBase string, showOwner bool) Node {
	if len(sites) == 0 {
		return P(Class("muted"), Text("No sites yet."))
	}

	rows := make([]Node, 0, len(sites))
	for _, s := range sites {
		rows = append(rows, Tr(
			Td(A(Href(s.URL), Text(s.Identifier))),
			Td(Code(Text(string(s.Kind)))),
			If(showOwner, Td(Code(Text(s.OwnerID.String())))),
			Td(Text(formatBytes(s.SizeBytes))),
			Td(Text(formatTime(s.UpdatedAt))),
			Td(Form(
				Class("inline"),
				Method("post"),
				Action(deleteBase+s.ID.String()+"/delete"),
				csrfField(r),
				Button(Type("submit"), Class("btn-danger"), Text("Delete")),
			)),
		))
	}

	return Table(
		THead(Tr(
			Th(Text("Name")),
			Th(Text("Type")),
			If(showOwner, Th(Text("Owner"))),
			Th(Text("Size")),
			Th(Text("Updated")),
			Th(),
		)),
		TBody(Group(rows)),
	)
}

func pager(path, next string) Node {
	if next == "" {
		return nil
	}
	return P(A(Href(path+"?cursor="+url.QueryEscape(next)), Text("Older sites")))
}

// viewerPage frames the site full-page in a sandboxed iframe. A non-empty
// src loads the content from there; otherwise content is inlined as srcdoc.
func viewerPage(site sitehost.Site, sandbox, src, content string) Node {
	source := Attr("srcdoc", content)
	if src != "" {
		source = Src(src)
	}
	return document(site.Identifier,
		El("iframe",
			Class("site-frame"),
			Attr("title", site.Identifier),
			Attr("sandbox", sandbox),
			source,
		),
	)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04 UTC")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
