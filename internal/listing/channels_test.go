package listing

import (
	"reflect"
	"testing"

	"github.com/snapetech/livetv-player/internal/catalog"
)

const channelsPage = `<!doctype html>
<html><body>
<div class="grid">
  <a class="card" href="/stream/stream-51.php"><span>
     ABC   USA
  </span></a>
  <a class="card" href="/stream/stream-44.php">ESPN &amp; More</a>
  <a class="card" href="/stream/stream-51.php">ABC duplicate</a>
  <a href="/about.php">About</a>
  <a href="https://mirror.example/stream/stream-7.php"><img src="x.png"> Seven</a>
  <a href="/stream/stream-x.php">Broken</a>
</div>
</body></html>`

func TestParseChannels(t *testing.T) {
	got, err := ParseChannels([]byte(channelsPage))
	if err != nil {
		t.Fatalf("ParseChannels: %v", err)
	}
	want := []catalog.Channel{
		{ID: 51, Name: "ABC USA"},
		{ID: 44, Name: "ESPN & More"},
		{ID: 7, Name: "Seven"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestParseChannels_duplicateFirstWins(t *testing.T) {
	page := `<a href="/stream/stream-5.php">First</a><a href="/stream/stream-5.php">Second</a>`
	got, err := ParseChannels([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "First" {
		t.Errorf("got %+v", got)
	}
}

func TestParseChannels_none(t *testing.T) {
	_, err := ParseChannels([]byte(`<html><body><a href="/home">Home</a></body></html>`))
	if err == nil {
		t.Fatal("expected error for page without channel links")
	}
}

func TestParseChannels_emptyAnchorSkipsToNextText(t *testing.T) {
	page := `<a href="/stream/stream-9.php"><img alt="logo"></a><a href="/stream/stream-10.php">Ten</a>`
	got, err := ParseChannels([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	want := []catalog.Channel{{ID: 10, Name: "Ten"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
