package playlist

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-editor/internal/mediatypes"
)

// wpl is the Windows Media Player playlist document.
type wpl struct {
	XMLName xml.Name `xml:"smil"`
	Head    struct {
		Title string `xml:"title"`
	} `xml:"head"`
	Body struct {
		Seq struct {
			Media []struct {
				Src string `xml:"src,attr"`
			} `xml:"media"`
		} `xml:"seq"`
	} `xml:"body"`
}

// Playlist is an ordered list of source files.
type Playlist struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Items []Item `json:"items"`
}

// Item is one entry, resolved against the playlist location and the media
// directory.
type Item struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	OrigPath string `json:"origPath"`
	Exists   bool   `json:"exists"`
}

// IsPlaylist reports whether path has a supported playlist extension.
func IsPlaylist(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wpl", ".m3u", ".m3u8":
		return true
	}
	return false
}

// Load reads a WPL or M3U playlist. mediaDir may be empty.
func Load(path, mediaDir string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var name string
	var sources []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wpl":
		name, sources, err = parseWPL(data)
	case ".m3u", ".m3u8":
		sources = parseM3U(data)
	default:
		err = fmt.Errorf("unsupported playlist format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p := &Playlist{Name: name, Path: path}
	listDir := filepath.Dir(path)
	for _, src := range sources {
		p.Items = append(p.Items, resolve(src, listDir, mediaDir))
	}
	return p, nil
}

func parseWPL(data []byte) (string, []string, error) {
	var doc wpl
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("parse wpl: %w", err)
	}
	var sources []string
	for _, m := range doc.Body.Seq.Media {
		if m.Src != "" {
			sources = append(sources, m.Src)
		}
	}
	return doc.Head.Title, sources, nil
}

// parseM3U returns every non-comment line. #EXTINF metadata is ignored.
func parseM3U(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var sources []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources
}

// resolve finds src relative to the playlist, then by base name in
// mediaDir. Windows separators are normalized first.
func resolve(src, listDir, mediaDir string) Item {
	norm := strings.ReplaceAll(src, "\\", "/")
	item := Item{Name: filepath.Base(norm), OrigPath: src}

	var candidates []string
	if filepath.IsAbs(norm) {
		candidates = append(candidates, norm)
	} else if !hasDriveLetter(norm) && !strings.HasPrefix(norm, "//") {
		candidates = append(candidates, filepath.Join(listDir, norm))
	}
	if mediaDir != "" {
		candidates = append(candidates, filepath.Join(mediaDir, item.Name))
	}

	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() && mediatypes.IsImportable(c) {
			item.Path, item.Exists = c, true
			return item
		}
	}
	item.Path = norm
	return item
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':'
}

// Missing returns the entries that could not be resolved.
func (p *Playlist) Missing() []Item {
	var out []Item
	for _, it := range p.Items {
		if !it.Exists {
			out = append(out, it)
		}
	}
	return out
}
