package server

import (
	"bytes"
	"fmt"

	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/metrics"
	"github.com/cyberinferno/wordduel/spectate"
)

// httpProbePrefix is the request line a browser sends when pointed at the
// game port. Anything starting with it is answered with the debug page
// instead of being decoded as a frame.
var httpProbePrefix = []byte("GET / HTTP/1.1")

func isHTTPProbe(buf []byte) bool {
	return bytes.HasPrefix(buf, httpProbePrefix)
}

// serveDebugPage writes a minimal HTTP response carrying the active-games
// page. The session keeps running afterwards; serving the page is a side
// capability of the socket, not part of the game protocol.
func (s *session) serveDebugPage() {
	metrics.DebugPagesServed.Inc()

	page, err := spectate.RenderHTML(s.server.snapshotGames())
	if err != nil {
		s.server.Logger.Error("rendering debug page",
			logger.Field{Key: "error", Value: err})
		return
	}

	var response bytes.Buffer
	response.WriteString("HTTP/1.1 200 OK\r\n")
	response.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	fmt.Fprintf(&response, "Content-Length: %d\r\n", len(page))
	response.WriteString("\r\n")
	response.Write(page)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(response.Bytes()); err != nil {
		s.server.Logger.Warn("writing debug page",
			logger.Field{Key: "error", Value: err})
	}
}
