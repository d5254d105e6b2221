package move

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lgrenard/melo/internal/library"
)

func TestEvalSegment(t *testing.T) {
	album := library.NewAlbum("Artist", "Album", 1999, "/music/src")
	track := library.NewTrack(album, 3, "Artist", "Song", "03.flac")

	tests := []struct {
		name     string
		template string
		item     library.Item
		want     string
		wantErr  bool
	}{
		{name: "plain literal", template: "lossless", item: album, want: "lossless"},
		{name: "album field", template: "{album.artist}", item: album, want: "Artist"},
		{name: "mixed literal and fields", template: "{album.title} ({album.year})", item: album, want: "Album (1999)"},
		{name: "zero padding", template: "{track.track_num:02}", item: track, want: "03"},
		{name: "track sees owning album", template: "{album.artist} - {track.title}", item: track, want: "Artist - Song"},
		{name: "conditional true", template: "{track.track_num>2?take {track.track_num}}", item: track, want: "take 3"},
		{name: "conditional false", template: "{track.track_num>9?take {track.track_num}}", item: track, want: ""},
		{name: "escaped braces", template: "{{literal}}", item: album, want: "{literal}"},
		{name: "unknown field", template: "{album.label}", item: album, wantErr: true},
		{name: "unqualified reference", template: "{artist}", item: album, wantErr: true},
		{name: "alias kind mismatch", template: "{track.title}", item: album, wantErr: true},
		{name: "unbalanced brace", template: "{album.artist", item: album, wantErr: true},
		{name: "condition without operator", template: "{album.year?x}", item: album, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalSegment(tt.template, tt.item)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Best?", "Best_"},
		{"AC/DC", "AC_DC"},
		{".hidden", "_hidden"},
		{"ends.", "ends_"},
		{"trailing space ", "trailing space"},
		{"a<b>c:d", "a_b_c_d"},
		{"clean name", "clean name"},
	}
	for _, tt := range tests {
		if got := sanitizeSegment(tt.in); got != tt.want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAsciiFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Béla Fleck", "Bela Fleck"},
		{"Sigur Rós", "Sigur Ros"},
		{"Motörhead", "Motorhead"},
		{"plain ascii", "plain ascii"},
	}
	for _, tt := range tests {
		if got := asciiFold(tt.in); got != tt.want {
			t.Errorf("asciiFold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFmtItemPathSanitizes(t *testing.T) {
	album := library.NewAlbum("A/C", "Best?", 1999, "/tmp/src")
	m := New(Config{LibraryPath: "/music"}, nil)

	got, err := m.FmtItemPath(album)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/music", "A_C", "Best_ (1999)"); got != want {
		t.Errorf("FmtItemPath = %q, want %q", got, want)
	}
}

func TestFmtItemPathDropsEmptySegments(t *testing.T) {
	album := library.NewAlbum("Artist", "Album", 1999, "/tmp/src")
	m := New(Config{
		LibraryPath: "/music",
		AlbumPath:   "{album.year>2000?modern}/{album.title}",
	}, nil)

	got, err := m.FmtItemPath(album)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/music", "Album"); got != want {
		t.Errorf("FmtItemPath = %q, want %q", got, want)
	}
}

func TestFmtItemPathAsciify(t *testing.T) {
	album := library.NewAlbum("Sigur Rós", "Von", 1997, "/tmp/src")
	m := New(Config{LibraryPath: "/music", AsciifyPaths: true}, nil)

	got, err := m.FmtItemPath(album)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/music", "Sigur Ros", "Von (1997)"); got != want {
		t.Errorf("FmtItemPath = %q, want %q", got, want)
	}
}

// seedAlbum writes a source album directory with one track and one extra and
// returns the in-memory album rooted there.
func seedAlbum(t *testing.T, srcDir string) *library.Album {
	t.Helper()
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"01.mp3", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(srcDir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	album := library.NewAlbum("Artist", "Album", 1999, srcDir)
	library.NewTrack(album, 1, "Artist", "Song", "01.mp3")
	library.NewExtra(album, "cover.jpg")
	return album
}

func TestCopyAlbum(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(t.TempDir(), "incoming", "stuff")
	album := seedAlbum(t, srcDir)

	m := New(Config{LibraryPath: root}, nil)
	if err := m.CopyItem(album); err != nil {
		t.Fatal(err)
	}

	wantDir := filepath.Join(root, "Artist", "Album (1999)")
	if album.Path() != wantDir {
		t.Errorf("album path = %q, want %q", album.Path(), wantDir)
	}
	if got := album.Tracks[0].Path(); got != filepath.Join(wantDir, "01 - Song.mp3") {
		t.Errorf("track path = %q", got)
	}
	if got := album.Extras[0].Path(); got != filepath.Join(wantDir, "cover.jpg") {
		t.Errorf("extra path = %q", got)
	}

	for _, p := range []string{album.Tracks[0].Path(), album.Extras[0].Path()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("destination file missing: %v", err)
		}
	}
	// Copy leaves the source in place.
	if _, err := os.Stat(filepath.Join(srcDir, "01.mp3")); err != nil {
		t.Error("copy must not remove the source file")
	}
}

func TestCopyAlbumAlreadyInPlace(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "Artist", "Album (1999)")
	album := seedAlbum(t, srcDir)

	m := New(Config{LibraryPath: root}, nil)
	if err := m.CopyItem(album); err != nil {
		t.Fatal(err)
	}
	if err := m.CopyItem(album); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(srcDir, "cover.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cover.jpg" {
		t.Error("in-place copy must not rewrite file contents")
	}
}

func TestMoveAlbumPrunesOldDirs(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	srcDir := filepath.Join(staging, "incoming", "batch")
	album := seedAlbum(t, srcDir)

	m := New(Config{LibraryPath: root}, nil)
	if err := m.MoveItem(album); err != nil {
		t.Fatal(err)
	}

	wantDir := filepath.Join(root, "Artist", "Album (1999)")
	if _, err := os.Stat(filepath.Join(wantDir, "01 - Song.mp3")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(srcDir); !os.IsNotExist(err) {
		t.Error("old album directory should be pruned")
	}
	if _, err := os.Stat(filepath.Join(staging, "incoming")); !os.IsNotExist(err) {
		t.Error("empty parent of old album directory should be pruned")
	}
}

func TestMoveAlbumKeepsNonEmptyParents(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	srcDir := filepath.Join(staging, "incoming", "batch")
	album := seedAlbum(t, srcDir)
	if err := os.WriteFile(filepath.Join(staging, "incoming", "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(Config{LibraryPath: root}, nil)
	if err := m.MoveItem(album); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(staging, "incoming")); err != nil {
		t.Error("parent directory with other content must survive")
	}
}

func TestMoveAlbumIsIdempotent(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(t.TempDir(), "incoming")
	album := seedAlbum(t, srcDir)

	m := New(Config{LibraryPath: root}, nil)
	if err := m.MoveItem(album); err != nil {
		t.Fatal(err)
	}

	wantDir := filepath.Join(root, "Artist", "Album (1999)")
	trackPath := album.Tracks[0].Path()
	before, err := os.Stat(trackPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.MoveItem(album); err != nil {
		t.Fatal(err)
	}

	if album.Path() != wantDir {
		t.Errorf("album path after second move = %q, want %q", album.Path(), wantDir)
	}
	if album.Tracks[0].Path() != trackPath {
		t.Errorf("track path after second move = %q, want %q", album.Tracks[0].Path(), trackPath)
	}
	after, err := os.Stat(trackPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("second move must not rewrite a file already in place")
	}
}

func TestMoveSingleTrack(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist", "Album (1999)")
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(albumDir, "song.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	album := library.NewAlbum("Artist", "Album", 1999, albumDir)
	track := library.NewTrack(album, 2, "Artist", "Song", "song.mp3")

	m := New(Config{LibraryPath: root}, nil)
	if err := m.MoveItem(track); err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(albumDir, "02 - Song.mp3"); track.Path() != want {
		t.Errorf("track path = %q, want %q", track.Path(), want)
	}
	if _, err := os.Stat(track.Path()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(albumDir, "song.mp3")); !os.IsNotExist(err) {
		t.Error("move must remove the source file")
	}
}
