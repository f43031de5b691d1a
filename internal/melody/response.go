package melody

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	defaultTempo = 120
	defaultGenre = "pop"
)

// ErrNotDataURL is returned by DecodeAudioURL for anything other than a
// base64 data URL.
var ErrNotDataURL = errors.New("audio_url is not a base64 data URL")

// Response is a melody document as returned by the generation backend.
type Response struct {
	Notes    Sequence `json:"notes"`
	Tempo    int      `json:"tempo"`
	Genre    string   `json:"genre"`
	Bars     int      `json:"bars"`
	AudioURL string   `json:"audio_url"`
}

// ReadResponse decodes a melody document and fills in defaults for a
// missing tempo or genre.
func ReadResponse(r io.Reader) (*Response, error) {
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("decode melody document", "The melody file is not valid JSON."),
			ftag.With(ftag.InvalidArgument))
	}
	if resp.Tempo <= 0 {
		resp.Tempo = defaultTempo
	}
	if resp.Genre == "" {
		resp.Genre = defaultGenre
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadFile reads a melody from a JSON document or a Standard MIDI File,
// chosen by extension. A path of "-" reads JSON from stdin.
func LoadFile(path string) (*Response, error) {
	if path == "-" {
		return ReadResponse(os.Stdin)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return ReadSMF(path)
	}

	f, err := os.Open(path) //nolint:gosec // user supplied melody path
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("open melody", fmt.Sprintf("Could not open %s", path)),
			ftag.With(ftag.NotFound))
	}
	defer func() { _ = f.Close() }()

	return ReadResponse(f)
}

// Validate checks that every note has a MIDI pitch. Step and duration
// values are tolerated as-is; playback clamps them.
func (r *Response) Validate() error {
	for i, n := range r.Notes {
		if n.Pitch < minPitch || n.Pitch > maxPitch {
			return fault.New(fmt.Sprintf("note %d: pitch %d outside 0-127", i, n.Pitch),
				fmsg.WithDesc("invalid pitch", fmt.Sprintf("Note %d has pitch %d, which is not a MIDI note.", i+1, n.Pitch)),
				ftag.With(ftag.InvalidArgument))
		}
	}
	return nil
}

// DecodeAudioURL returns the bytes carried by a data URL such as
// "data:audio/midi;base64,TVRoZA...".
func DecodeAudioURL(url string) ([]byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding audio_url payload: %w", err)
	}
	return data, nil
}
