package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server {
	listen 8080;
	host a;
	root ./www;
	index index.html;
	error_page 404 404.html;
	client_max_body_size 1000000;
	autoindex off;

	location /up {
		upload_store ./www/uploads;
		methods POST;
	}

	location /cgi {
		cgi .py /usr/bin/python3;
	}

	location /old {
		redirect 301 /new;
	}
}

server {
	listen 8080;
	host b;
	root ./www-b;
}
`

func TestParseBuildsServerTree(t *testing.T) {
	root, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.Len(t, root.Servers, 2)

	a := root.Servers[0]
	require.Equal(t, 8080, a.Port)
	require.Equal(t, "a", a.Host)
	require.Equal(t, "./www", a.Root)
	require.Equal(t, "404.html", a.ErrorPages[404])
	require.EqualValues(t, 1000000, a.ClientMaxBodySize)
	require.False(t, a.Autoindex)
	require.Len(t, a.Locations, 3)

	up := a.FindLocation("/up/foo.txt")
	require.NotNil(t, up)
	require.Equal(t, "./www/uploads", up.UploadStore)
	require.True(t, up.HasMethod(MethodPOST))
	require.False(t, up.HasMethod(MethodGET))

	cgi := a.FindLocation("/cgi/hello.py")
	require.NotNil(t, cgi)
	require.Equal(t, ".py", cgi.CGI.Extension)

	old := a.FindLocation("/old")
	require.NotNil(t, old)
	require.Equal(t, 301, old.Redirect.Code)
}

func TestRootPortHelpers(t *testing.T) {
	root, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, []int{8080}, root.Ports())
	onPort := root.ServersOnPort(8080)
	require.Len(t, onPort, 2)
	require.Same(t, root.Servers[0], root.DefaultServerForPort(8080))
}

func TestFindLocationLongestPrefixWins(t *testing.T) {
	src := `
server {
	listen 80;
	root ./www;
	location / { }
	location /a { }
	location /a/b { }
}
`
	root, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	srv := root.Servers[0]

	require.Equal(t, "/a/b", srv.FindLocation("/a/b/c").Path)
	require.Equal(t, "/a", srv.FindLocation("/a/x").Path)
	require.Equal(t, "/", srv.FindLocation("/elsewhere").Path)
}

func TestParseRejectsMissingListen(t *testing.T) {
	_, err := Parse(strings.NewReader("server {\n root ./www;\n}\n"))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseRejectsMalformedClientMaxBodySize(t *testing.T) {
	// A non-numeric client_max_body_size is rejected at parse time.
	_, err := Parse(strings.NewReader("server {\n listen 80;\n client_max_body_size abc;\n}\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownDirective(t *testing.T) {
	_, err := Parse(strings.NewReader("server {\n listen 80;\n bogus x;\n}\n"))
	require.Error(t, err)
}

func TestParseRejectsTrailingSlashLocationPath(t *testing.T) {
	_, err := Parse(strings.NewReader("server {\n listen 80;\n location /a/ { }\n}\n"))
	require.Error(t, err)
}

func TestListenHostSeedsVhostName(t *testing.T) {
	root, err := Parse(strings.NewReader("server {\n listen example.com:8080;\n root ./www;\n}\n"))
	require.NoError(t, err)
	require.Equal(t, "example.com", root.Servers[0].Host)
}

func TestExplicitHostOverridesListenHost(t *testing.T) {
	root, err := Parse(strings.NewReader(
		"server {\n listen example.com:8080;\n host override.com;\n root ./www;\n}\n"))
	require.NoError(t, err)
	require.Equal(t, "override.com", root.Servers[0].Host)
}

func TestSplitHostPortVariants(t *testing.T) {
	host, port, err := splitHostPort("127.0.0.1:9090")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", host)
	require.Equal(t, 9090, port)

	host, port, err = splitHostPort("9090")
	require.NoError(t, err)
	require.Equal(t, "", host)
	require.Equal(t, 9090, port)

	_, _, err = splitHostPort("70000")
	require.Error(t, err)
}

func TestEffectiveHelpersInheritFromServer(t *testing.T) {
	loc := &Location{}
	require.Equal(t, "./www", loc.EffectiveRoot("./www"))
	require.Equal(t, "index.html", loc.EffectiveIndex("index.html"))
	require.True(t, loc.EffectiveAutoindex(true))

	loc.Autoindex = AutoindexOn
	require.True(t, loc.EffectiveAutoindex(false))
	loc.Autoindex = AutoindexOff
	require.False(t, loc.EffectiveAutoindex(true))
}
