package grabber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/media-grabber/internal/client/artwork"
	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// CompletedFile is a file the engine finished producing.
type CompletedFile struct {
	// Path is the engine-reported final location (empty when unknown).
	Path string
	// OutputDir is the target output directory, used when Path is unknown.
	OutputDir string
	// Extension is the file extension without a dot.
	Extension string
	// Title is the item title.
	Title string
	// Artist is the resolved artist.
	Artist string
	// Album is the declared album (empty when absent).
	Album string
	// Thumbnail is the thumbnail URL (empty when absent).
	Thumbnail string
	// Genre is the genre tag (empty when unknown).
	Genre string
	// IsAudio indicates whether the file is audio only and receives tags and a cover.
	IsAudio bool
}

// ExpectedPath returns the engine-reported path or the path the output template produces.
func (f *CompletedFile) ExpectedPath() string {
	if f.Path != "" {
		return f.Path
	}

	return filepath.Join(f.OutputDir, utils.SetFileExtension(f.Title, f.Extension, false))
}

// ProcessResult describes what post-processing did to a file.
type ProcessResult struct {
	// Path is the final file location.
	Path string
	// Artist is the sanitized artist.
	Artist string
	// Title is the sanitized title.
	Title string
	// IsSkipped indicates that the file was missing and nothing was done.
	IsSkipped bool
	// IsTagged indicates that the tags were written.
	IsTagged bool
	// IsRenamed indicates that the file was renamed.
	IsRenamed bool
	// IsCoverEmbedded indicates that the cover art was embedded.
	IsCoverEmbedded bool
	// Warnings are the failures of individual steps.
	Warnings []string
	// Size is the final file size in bytes.
	Size int64
}

// Pipeline finalizes files produced by the engine.
type Pipeline interface {
	// Process runs every post-processing step on file. Step failures become warnings.
	Process(ctx context.Context, file *CompletedFile) *ProcessResult
}

// PipelineImpl checks, tags, renames and decorates finished files, in that order.
type PipelineImpl struct {
	// tagStore writes metadata tags.
	tagStore TagStore
	// artworkClient fetches cover art.
	artworkClient artwork.Client
}

// NewPipeline creates a post-processing pipeline.
func NewPipeline(tagStore TagStore, artworkClient artwork.Client) Pipeline {
	return &PipelineImpl{
		tagStore:      tagStore,
		artworkClient: artworkClient,
	}
}

// Process runs the existence check, tag injection, rename and cover art steps.
func (p *PipelineImpl) Process(ctx context.Context, file *CompletedFile) *ProcessResult {
	result := &ProcessResult{
		Path:   file.ExpectedPath(),
		Artist: utils.StripForbiddenChars(strings.TrimSpace(file.Artist)),
		Title:  utils.StripForbiddenChars(strings.TrimSpace(file.Title)),
	}

	isExist, err := utils.IsFileExist(result.Path)
	if err != nil || !isExist {
		logger.Warnf(ctx, "Downloaded file '%s' not found, skipping post-processing", result.Path)

		result.IsSkipped = true

		return result
	}

	if file.IsAudio {
		p.injectTags(ctx, file, result)
	}

	p.rename(ctx, file, result)

	if file.IsAudio {
		p.embedCover(ctx, file, result)
	}

	if stat, statErr := os.Stat(result.Path); statErr == nil {
		result.Size = stat.Size()
	}

	return result
}

func (p *PipelineImpl) injectTags(ctx context.Context, file *CompletedFile, result *ProcessResult) {
	if !isTaggable(result.Path) {
		logger.Debugf(ctx, "Tags are not supported for '%s'", result.Path)

		return
	}

	err := p.editTags(result.Path, func(handle TagHandle) {
		if artist := strings.TrimSpace(file.Artist); artist != "" {
			handle.SetTag(TagKeyArtist, artist)
		}

		handle.SetTag(TagKeyTitle, strings.TrimSpace(file.Title))

		if album := strings.TrimSpace(file.Album); album != "" {
			handle.SetTag(TagKeyAlbum, album)
		}

		if genre := strings.TrimSpace(file.Genre); genre != "" {
			handle.SetTag(TagKeyGenre, genre)
		}
	})
	if err != nil {
		addWarning(ctx, result, "failed to write tags to '%s': %v", result.Path, err)

		return
	}

	result.IsTagged = true
}

func (p *PipelineImpl) rename(ctx context.Context, file *CompletedFile, result *ProcessResult) {
	extension := strings.TrimPrefix(filepath.Ext(result.Path), ".")
	if extension == "" {
		extension = file.Extension
	}

	name := result.Title
	if result.Artist != "" {
		name = result.Artist + " - " + result.Title
	}

	name = stripUnrepresentable(name)
	if strings.TrimSpace(name) == "" {
		logger.Debugf(ctx, "Keeping '%s', nothing is left of its title after sanitizing", result.Path)

		return
	}

	fileName := utils.SetFileExtension(name, extension, false)

	newPath := filepath.Join(filepath.Dir(result.Path), fileName)
	if newPath == result.Path {
		return
	}

	if err := os.Rename(result.Path, newPath); err != nil {
		addWarning(ctx, result, "failed to rename '%s': %v", result.Path, err)

		return
	}

	logger.Debugf(ctx, "Renamed '%s' to '%s'", result.Path, newPath)

	result.Path = newPath
	result.IsRenamed = true
}

func (p *PipelineImpl) embedCover(ctx context.Context, file *CompletedFile, result *ProcessResult) {
	if file.Thumbnail == "" || !isTaggable(result.Path) {
		return
	}

	if isExist, err := utils.IsFileExist(result.Path); err != nil || !isExist {
		return
	}

	cover, err := p.artworkClient.FetchCover(ctx, file.Thumbnail)
	if err != nil {
		addWarning(ctx, result, "failed to fetch cover art for '%s': %v", result.Title, err)

		return
	}

	err = p.editTags(result.Path, func(handle TagHandle) {
		handle.SetCoverArt(cover)
	})
	if err != nil {
		addWarning(ctx, result, "failed to embed cover art into '%s': %v", result.Path, err)

		return
	}

	result.IsCoverEmbedded = true
}

func (p *PipelineImpl) editTags(path string, edit func(handle TagHandle)) (err error) {
	handle, err := p.tagStore.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := handle.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	edit(handle)

	return handle.Save()
}

// isTaggable reports whether the tag store supports the file format.
// stripUnrepresentable drops the characters no file name can hold: NUL and the path separators of the OS.
func stripUnrepresentable(name string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || (r < utf8.RuneSelf && os.IsPathSeparator(uint8(r))) {
			return -1
		}

		return r
	}, name)
}

func isTaggable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case constants.ExtensionMP3, constants.ExtensionFLAC:
		return true
	default:
		return false
	}
}

func addWarning(ctx context.Context, result *ProcessResult, format string, args ...any) {
	warning := fmt.Sprintf(format, args...)

	logger.Warn(ctx, warning)

	result.Warnings = append(result.Warnings, warning)
}
