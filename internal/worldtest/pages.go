package worldtest

import (
	"fmt"
	"net/http"
)

var homePage = `
<html>
<head>
	<title>World Test Suite</title>
</head>
<body>
	<h1 id="title">The home page</h1>
	<form action="/search">
		<input name="q" autofocus />
		<button id="go" type="submit">Search</button>
	</form>
	<ul id="items">
		<li class="item">First item</li>
		<li class="item">Second item</li>
		<li class="item done">Done item</li>
	</ul>
	<div id="secret" style="display: none">Hidden text</div>
	<p>Link to the <a id="other" href="/other">other page</a>.</p>
	<p><a id="jump" href="#items">Jump to the list</a></p>
</body>
</html>
`

var otherPage = `
<html>
<head>
	<title>World Test Suite - Other Page</title>
</head>
<body>
	The other page.
</body>
</html>
`

var helloPage = `
<html>
<head>
	<title>World Test Suite - Hello Page</title>
</head>
<body><span>Hello</span><span>  World  </span></body>
</html>
`

var logPage = `
<html>
<head>
	<title>World Test Suite - Log Page</title>
	<script>
		console.log("console log");
	</script>
</head>
<body>
	Log test page.
</body>
</html>
`

var dragPage = `
<html>
<head>
	<title>World Test Suite - Drag Page</title>
	<style>
		html, body { margin: 0; width: 100%; height: 100%; }
	</style>
</head>
<body>
	<div id="events"></div>
	<script>
		var events = document.getElementById("events");
		function record(kind) {
			return function(e) {
				events.textContent += kind + " " + e.clientX + "," + e.clientY + " ";
			};
		}
		document.addEventListener("mousedown", record("down"));
		document.addEventListener("mouseup", record("up"));
	</script>
</body>
</html>
`

// Handler serves the pages the tests navigate to.
var Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	page, ok := map[string]string{
		"/":      homePage,
		"/other": otherPage,
		"/hello": helloPage,
		"/log":   logPage,
		"/drag":  dragPage,
	}[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
})
