package detector

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

func ok(body string) crawler.FetchResponse {
	return crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	require.True(t, NewHeuristic(100).ShouldPromote(ok("")))
}

func TestHeuristic_ShouldPromote_ShellMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote(ok(`<div id="__next"></div>`)))
	require.True(t, h.ShouldPromote(ok(`<NOSCRIPT>Please enable JavaScript to view this page</NOSCRIPT>`+strings.Repeat("x", 200))))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.ShouldPromote(ok(`<html><script>var a=1;</script><p>t</p></html>`)))
}

func TestHeuristic_ShouldPromote_IgnoresFailures(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.False(t, h.ShouldPromote(crawler.FetchResponse{StatusCode: http.StatusNotFound}))
}

func TestHeuristic_ContentMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10, "heading-size-1", " ")
	require.Len(t, h.ContentMarkers, 1)

	page := `<html><body><h1 class="Heading-Size-1">Hogger</h1>` + strings.Repeat("<p>lore</p>", 10) + `</body></html>`
	require.False(t, h.ShouldPromote(ok(page)))

	stub := `<html><body>` + strings.Repeat("<p>lore</p>", 10) + `</body></html>`
	require.True(t, h.ShouldPromote(ok(stub)))
}

func TestHeuristic_PlainPageStays(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.Equal(t, defaultBodyLengthThreshold, h.BodyLengthThreshold)
	require.False(t, h.ShouldPromote(ok("<html><body><h1>Hogger</h1></body></html>")))
}

func TestScriptDensityHigh_Unterminated(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh([]byte(`<p>a</p><script src="x.js"`)))
	require.True(t, scriptDensityHigh([]byte(`<p>a</p><script>var x = 1; var y = 2;`)))
	require.False(t, scriptDensityHigh([]byte(`<p>plain text only</p>`)))
}
