package grabber

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/oshokin/id3v2/v2"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/utils"
)

// TagKey names a metadata tag.
type TagKey string

const (
	// TagKeyTitle is the item title.
	TagKeyTitle TagKey = "title"
	// TagKeyArtist is the performing artist.
	TagKeyArtist TagKey = "artist"
	// TagKeyAlbum is the album title.
	TagKeyAlbum TagKey = "album"
	// TagKeyGenre is the genre.
	TagKeyGenre TagKey = "genre"
)

// TagStore opens audio files for metadata editing.
type TagStore interface {
	// Open opens the file at path, returning ErrTagFileNotFound when it does not exist.
	Open(path string) (TagHandle, error)
}

// TagHandle edits the metadata of one open file. Changes are written by Save.
type TagHandle interface {
	// SetTag sets a tag, replacing any previous value.
	SetTag(key TagKey, value string)
	// SetCoverArt sets the JPEG front cover, replacing any previous one.
	SetCoverArt(jpeg []byte)
	// Save writes the changes to the file.
	Save() error
	// Close releases the file.
	Close() error
}

// TagStoreImpl writes ID3v2 tags to MP3 files and Vorbis comments to FLAC files.
type TagStoreImpl struct{}

// NewTagStore creates a new TagStore instance.
func NewTagStore() TagStore {
	return new(TagStoreImpl)
}

// Open opens the file at path for metadata editing, choosing the tag format by extension.
func (s *TagStoreImpl) Open(path string) (TagHandle, error) {
	isExist, err := utils.IsFileExist(path)
	if err != nil {
		return nil, err
	}

	if !isExist {
		return nil, fmt.Errorf("%w: %s", ErrTagFileNotFound, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtensionMP3:
		return openMP3(path)
	case constants.ExtensionFLAC:
		return openFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTagFormat, filepath.Ext(path))
	}
}

// mp3Handle edits the ID3v2 tag of an MP3 file, preserving frames it does not touch.
type mp3Handle struct {
	// tag is the parsed ID3v2 tag.
	tag *id3v2.Tag
}

func openMP3(path string) (*mp3Handle, error) {
	//nolint:exhaustruct // ParseFrames intentionally omitted to parse every frame.
	tag, err := id3v2.Open(filepath.Clean(path), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open ID3 tag: %w", err)
	}

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	return &mp3Handle{tag: tag}, nil
}

func (h *mp3Handle) SetTag(key TagKey, value string) {
	switch key {
	case TagKeyTitle:
		h.tag.SetTitle(value)
	case TagKeyArtist:
		h.tag.SetArtist(value)
	case TagKeyAlbum:
		h.tag.SetAlbum(value)
	case TagKeyGenre:
		h.tag.SetGenre(value)
	}
}

func (h *mp3Handle) SetCoverArt(jpeg []byte) {
	h.tag.DeleteFrames(h.tag.CommonID("Attached picture"))

	h.tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    utils.ImageJPEGMimeType,
		PictureType: id3v2.PTFrontCover,
		Description: "Front cover",
		Picture:     jpeg,
	})
}

func (h *mp3Handle) Save() error {
	return h.tag.Save()
}

func (h *mp3Handle) Close() error {
	return h.tag.Close()
}

// flacHandle edits the Vorbis comment and picture blocks of a FLAC file.
type flacHandle struct {
	// path is the file location.
	path string
	// file is the parsed FLAC stream.
	file *flac.File
	// comment is the Vorbis comment block being edited.
	comment *flacvorbis.MetaDataBlockVorbisComment
	// cover is the pending front cover.
	cover []byte
}

// flacTagNames maps tag keys to Vorbis comment field names.
//
//nolint:gochecknoglobals // Immutable lookup table.
var flacTagNames = map[TagKey]string{
	TagKeyTitle:  "TITLE",
	TagKeyArtist: "ARTIST",
	TagKeyAlbum:  "ALBUM",
	TagKeyGenre:  "GENRE",
}

func openFLAC(path string) (*flacHandle, error) {
	file, err := flac.ParseFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	handle := &flacHandle{
		path: path,
		file: file,
	}

	// Reuse the existing Vorbis comment block so engine-written fields survive.
	for _, meta := range file.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}

		comment, parseErr := flacvorbis.ParseFromMetaDataBlock(*meta)
		if parseErr == nil {
			handle.comment = comment

			break
		}
	}

	if handle.comment == nil {
		handle.comment = flacvorbis.New()
	}

	return handle, nil
}

func (h *flacHandle) SetTag(key TagKey, value string) {
	name, ok := flacTagNames[key]
	if !ok {
		return
	}

	prefix := name + "="
	h.comment.Comments = utils.Filter(h.comment.Comments, func(comment string) bool {
		return !strings.HasPrefix(strings.ToUpper(comment), prefix)
	})

	// Add only fails on malformed field names.
	_ = h.comment.Add(name, value)
}

func (h *flacHandle) SetCoverArt(jpeg []byte) {
	h.cover = jpeg
}

func (h *flacHandle) Save() error {
	if h.cover != nil {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover",
			h.cover, utils.ImageJPEGMimeType)
		if err != nil {
			return fmt.Errorf("failed to create FLAC picture: %w", err)
		}

		h.file.Meta = utils.Filter(h.file.Meta, func(meta *flac.MetaDataBlock) bool {
			return meta.Type != flac.Picture
		})

		pictureMeta := picture.Marshal()
		h.file.Meta = append(h.file.Meta, &pictureMeta)
		h.cover = nil
	}

	commentMeta := h.comment.Marshal()
	if idx := h.findCommentIndex(); idx >= 0 {
		h.file.Meta[idx] = &commentMeta
	} else {
		h.file.Meta = append(h.file.Meta, &commentMeta)
	}

	return h.file.Save(h.path)
}

func (h *flacHandle) findCommentIndex() int {
	for idx, meta := range h.file.Meta {
		if meta.Type == flac.VorbisComment {
			return idx
		}
	}

	return -1
}

func (h *flacHandle) Close() error {
	return nil
}
