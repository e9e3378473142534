package spectate

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/cyberinferno/wordduel/game"
)

var pageTemplate = template.Must(template.New("games").Parse(`<!DOCTYPE html>
<html>
<head><title>Server</title></head>
<body>
<h1>Server</h1>
{{if .}}<table>
<tr><th>Game</th><th>Host</th><th>Opponent</th><th>Attempts left</th><th>Last guess</th><th>Last hint</th><th>State</th></tr>
{{range .}}<tr><td>{{.ID}}</td><td>{{.HostID}}</td><td>{{.OpponentID}}</td><td>{{.Attempts}}</td><td>{{.LastGuess}}</td><td>{{.LastHint}}</td><td>{{.State}}</td></tr>
{{end}}</table>
{{else}}<p>No active games</p>
{{end}}</body>
</html>
`))

// RenderHTML renders the spectator page for the given games. The same page is
// served by the in-band HTTP fallback and the ops listener.
//
// Parameters:
//   - games: The snapshot list to render
//
// Returns:
//   - The rendered page, or an error if the template fails
func RenderHTML(games []game.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, games); err != nil {
		return nil, fmt.Errorf("failed to render games page: %w", err)
	}

	return buf.Bytes(), nil
}
