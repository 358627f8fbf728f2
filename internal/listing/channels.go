package listing

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/snapetech/livetv-player/internal/catalog"
)

// streamHref matches channel links on the 24/7 page, relative or absolute.
var streamHref = regexp.MustCompile(`^(?:https?://[^/]+)?/stream/stream-(\d+)\.php$`)

var errNoChannels = errors.New("no channel links found")

// ParseChannels extracts channels from the 24/7 channels page. Each
// <a href="/stream/stream-N.php"> contributes channel N named by the first
// non-blank text inside the anchor. Repeated IDs keep their first name.
func ParseChannels(page []byte) ([]catalog.Channel, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	set := catalog.NewChannelSet()
	var (
		inLink bool
		named  bool
		id     int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			if set.Len() == 0 {
				return nil, errNoChannels
			}
			return set.Channels(), nil
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			if n, ok := channelHref(z); ok {
				inLink, named, id = true, false, n
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "a" {
				inLink = false
			}
		case html.TextToken:
			if !inLink || named {
				continue
			}
			// Text() has already decoded entities.
			text := collapseSpace(string(z.Text()))
			if text == "" {
				continue
			}
			set.Add(catalog.Channel{ID: id, Name: text})
			named = true
		}
	}
}

func channelHref(z *html.Tokenizer) (int, bool) {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "href" {
			m := streamHref.FindStringSubmatch(strings.TrimSpace(string(val)))
			if m == nil {
				return 0, false
			}
			n, err := strconv.Atoi(m[1])
			return n, err == nil
		}
		if !more {
			return 0, false
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
