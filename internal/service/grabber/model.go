package grabber

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
)

// Target describes what to acquire and how. It is not modified once an acquisition begins.
type Target struct {
	// URL is the remote media or playlist URL.
	URL string
	// OutputDir is the directory receiving the produced files.
	OutputDir string
	// Format is the output format (mp3, flac or mp4).
	Format string
	// AudioBitrate is the target bitrate in kbps for audio formats.
	AudioBitrate int64
	// VideoQuality is the maximum vertical resolution for the video format.
	VideoQuality int64
	// IsPlaylist indicates whether the URL is expanded as a playlist.
	IsPlaylist bool
	// PlaylistStart is the 1-based first entry of the requested range.
	PlaylistStart int
	// PlaylistEnd is the 1-based last entry of the requested range (0 means the last entry).
	PlaylistEnd int
	// RateLimit is the maximum download rate in bytes per second (0 means unlimited).
	RateLimit int64
}

// NewTarget creates a target for url from the validated configuration.
func NewTarget(cfg *config.Config, url string) *Target {
	return &Target{
		URL:           strings.TrimSpace(url),
		OutputDir:     cfg.OutputPath,
		Format:        cfg.Format,
		AudioBitrate:  cfg.AudioBitrate,
		VideoQuality:  cfg.VideoQuality,
		IsPlaylist:    cfg.IsPlaylist,
		PlaylistStart: int(cfg.PlaylistStart),
		PlaylistEnd:   int(cfg.PlaylistEnd),
		RateLimit:     cfg.ParsedDownloadSpeedLimit,
	}
}

// Validate checks the target, normalizing a zero playlist start to the first entry.
func (t *Target) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return ErrEmptyURL
	}

	if strings.TrimSpace(t.OutputDir) == "" {
		return ErrEmptyOutputDir
	}

	if !slices.Contains(config.SupportedFormats, t.Format) {
		return fmt.Errorf("%w: '%s'", config.ErrInvalidFormat, t.Format)
	}

	if t.PlaylistStart == 0 {
		t.PlaylistStart = 1
	}

	if t.PlaylistStart < 0 || t.PlaylistEnd < 0 {
		return fmt.Errorf("%w: bounds must be positive", config.ErrInvalidPlaylistRange)
	}

	if t.PlaylistEnd > 0 && t.PlaylistEnd < t.PlaylistStart {
		return fmt.Errorf("%w: start %d is greater than end %d",
			config.ErrInvalidPlaylistRange, t.PlaylistStart, t.PlaylistEnd)
	}

	return nil
}

// IsAudio reports whether the target produces audio-only files.
func (t *Target) IsAudio() bool {
	return t.Format == config.FormatMP3 || t.Format == config.FormatFLAC
}

// RequestedRangeSize returns the number of entries the range asks for, or 0 when it is open-ended.
func (t *Target) RequestedRangeSize() int {
	if !t.IsPlaylist || t.PlaylistEnd <= 0 {
		return 0
	}

	return t.PlaylistEnd - max(t.PlaylistStart, 1) + 1
}

const (
	// unknownTitle is the title of items without one.
	unknownTitle = "Unknown"
	// unknownPlaylistTitle is the title of playlists without one.
	unknownPlaylistTitle = "Unknown Playlist"
	// unknownUploader is the display name of items without an uploader.
	unknownUploader = "Unknown"
	// topicSuffix is appended by video platforms to auto-generated artist channels.
	topicSuffix = " - Topic"
	// musicCategory marks music items.
	musicCategory = "Music"
)

// Item is the resolved metadata of a single media item.
type Item struct {
	// Title is the item title ("Unknown" when absent).
	Title string
	// Uploader is the raw uploader name (empty when absent).
	Uploader string
	// Duration is the item length in seconds.
	Duration float64
	// Thumbnail is the thumbnail URL (empty when absent).
	Thumbnail string
	// Categories are the category tags of the item.
	Categories []string
	// Artists are the declared performers.
	Artists []string
	// Album is the declared album (empty when absent).
	Album string
}

// NewItem converts engine metadata into an item, applying the default rules.
func NewItem(info *ytdlp.Info) *Item {
	item := &Item{
		Title:      strings.TrimSpace(info.Title),
		Uploader:   strings.TrimSpace(info.Uploader),
		Duration:   max(info.Duration, 0),
		Thumbnail:  strings.TrimSpace(info.Thumbnail),
		Categories: info.Categories,
		Artists:    info.Artists,
		Album:      strings.TrimSpace(info.Album),
	}

	if item.Title == "" {
		item.Title = unknownTitle
	}

	if item.Categories == nil {
		item.Categories = []string{}
	}

	if len(item.Artists) == 0 && strings.TrimSpace(info.Artist) != "" {
		item.Artists = []string{strings.TrimSpace(info.Artist)}
	}

	return item
}

// DisplayUploader returns the uploader without the topic suffix, or "Unknown".
func (i *Item) DisplayUploader() string {
	uploader := strings.TrimSpace(strings.TrimSuffix(i.Uploader, topicSuffix))
	if uploader == "" {
		return unknownUploader
	}

	return uploader
}

// Artist returns the first declared artist, falling back to the uploader without the topic suffix.
func (i *Item) Artist() string {
	for _, artist := range i.Artists {
		if artist = strings.TrimSpace(artist); artist != "" {
			return artist
		}
	}

	return strings.TrimSpace(strings.TrimSuffix(i.Uploader, topicSuffix))
}

// IsMusic reports whether the item is categorized as music.
func (i *Item) IsMusic() bool {
	return slices.Contains(i.Categories, musicCategory)
}

// FormattedDuration returns the duration as H:MM:SS.
func (i *Item) FormattedDuration() string {
	return FormatDuration(i.Duration)
}

// FormatDuration formats seconds as H:MM:SS.
func FormatDuration(seconds float64) string {
	total := int64(max(seconds, 0))

	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// Metadata is the resolved description of a target: a single item or a playlist.
// Playlist indices are positions in the resolved range as numbered by the engine,
// so an unresolvable entry still occupies its position.
type Metadata struct {
	// Title is the item or playlist title.
	Title string
	// IsPlaylist indicates whether the metadata describes a playlist.
	IsPlaylist bool
	// Item is the single item (nil for playlists).
	Item *Item
	// Entries are the resolvable playlist entries in playlist order.
	Entries []*Item
	// Positions are the ascending 0-based range positions of Entries (nil means no entry was dropped).
	Positions []int
	// RangeSize is the number of entries in the resolved range, unresolvable ones included.
	RangeSize int
}

// NewMetadata converts engine metadata, dropping unresolvable playlist entries but keeping their positions.
func NewMetadata(info *ytdlp.Info) *Metadata {
	if !info.IsPlaylist() {
		item := NewItem(info)

		return &Metadata{
			Title: item.Title,
			Item:  item,
		}
	}

	metadata := &Metadata{
		Title:      strings.TrimSpace(info.Title),
		IsPlaylist: true,
		Entries:    make([]*Item, 0, len(info.Entries)),
		RangeSize:  len(info.Entries),
	}

	if metadata.Title == "" {
		metadata.Title = unknownPlaylistTitle
	}

	positions := make([]int, 0, len(info.Entries))

	for position, entry := range info.Entries {
		if entry == nil {
			continue
		}

		metadata.Entries = append(metadata.Entries, NewItem(entry))
		positions = append(positions, position)
	}

	if len(positions) != len(info.Entries) {
		metadata.Positions = positions
	}

	return metadata
}

// DeclaredLength returns the number of resolvable entries, which is authoritative over any requested range.
// A single item has a declared length of one.
func (m *Metadata) DeclaredLength() int {
	if !m.IsPlaylist {
		return 1
	}

	return len(m.Entries)
}

// RangeLength returns the number of positions in the resolved range, unresolvable entries included.
func (m *Metadata) RangeLength() int {
	if !m.IsPlaylist {
		return 1
	}

	return max(m.RangeSize, len(m.Entries))
}

// CompletedBefore returns how many resolvable entries precede the range position index.
func (m *Metadata) CompletedBefore(index int) int {
	if !m.IsPlaylist {
		return min(max(index, 0), 1)
	}

	if m.Positions == nil {
		return min(max(index, 0), len(m.Entries))
	}

	count, _ := slices.BinarySearch(m.Positions, index)

	return count
}

// ItemAt returns the item at the 0-based range position, or nil when it is out of range or unresolvable.
func (m *Metadata) ItemAt(index int) *Item {
	if !m.IsPlaylist {
		if index == 0 {
			return m.Item
		}

		return nil
	}

	if m.Positions != nil {
		ordinal, isFound := slices.BinarySearch(m.Positions, index)
		if !isFound {
			return nil
		}

		return m.Entries[ordinal]
	}

	if index < 0 || index >= len(m.Entries) {
		return nil
	}

	return m.Entries[index]
}

// ItemLabel returns the display title of the item at index.
func (m *Metadata) ItemLabel(index int) string {
	if item := m.ItemAt(index); item != nil {
		return item.Title
	}

	return unknownTitle
}
