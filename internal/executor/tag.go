package executor

import (
	"fmt"
	"os"

	"github.com/bogem/id3v2/v2"
)

// tagMP3 writes ID3v2 title, artist, and optional cover art onto an MP3
// file in place.
func tagMP3(path, title, artist, coverPath string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tag: %w", err)
	}
	defer tag.Close()

	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}

	if coverPath != "" {
		art, err := os.ReadFile(coverPath)
		if err != nil {
			return fmt.Errorf("read cover art: %w", err)
		}
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Picture:     art,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}
