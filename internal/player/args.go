package player

import "strings"

// Header is one HTTP header in the order it should be sent.
type Header struct {
	Name  string
	Value string
}

// StreamlinkArgs builds the streamlink command line. The URL is forced
// through the HLS variant plugin and the best quality is selected.
func StreamlinkArgs(player string, headers []Header, cookie, streamURL string) []string {
	args := []string{"--player", player}
	for _, h := range headers {
		if h.Value == "" {
			continue
		}
		args = append(args, "--http-header", h.Name+"="+h.Value)
	}
	if cookie != "" {
		args = append(args, "--http-cookie", cookie)
	}
	return append(args, "hlsvariant://"+streamURL, "best")
}

// FFplayArgs builds the ffplay command line; headers travel as one CRLF block.
func FFplayArgs(headers []Header, streamURL string) []string {
	return []string{"-loglevel", "quiet", "-headers", HeaderBlock(headers), streamURL}
}

// HeaderBlock renders headers as "Name: value\r\n" lines.
func HeaderBlock(headers []Header) string {
	var b strings.Builder
	for _, h := range headers {
		if h.Value == "" {
			continue
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	return b.String()
}
