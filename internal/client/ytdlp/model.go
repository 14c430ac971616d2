package ytdlp

// Info is the subset of the yt-dlp info dictionary consumed by the application.
// Fields absent from the engine output keep their zero values.
type Info struct {
	// ID is the extractor-specific identifier.
	ID string `json:"id"`
	// Type is "playlist" for playlists, "video" or empty for single items.
	Type string `json:"_type"`
	// Title is the item or playlist title.
	Title string `json:"title"`
	// Uploader is the channel or account that published the item.
	Uploader string `json:"uploader"`
	// Duration is the item length in seconds.
	Duration float64 `json:"duration"`
	// Thumbnail is the URL of the preferred thumbnail.
	Thumbnail string `json:"thumbnail"`
	// Categories are the category tags of the item.
	Categories []string `json:"categories"`
	// Artists are the declared performers of a music item.
	Artists []string `json:"artists"`
	// Artist is the legacy comma-separated performer field.
	Artist string `json:"artist"`
	// Album is the declared album of a music item.
	Album string `json:"album"`
	// Extension is the container extension of the produced file.
	Extension string `json:"ext"`
	// Filepath is the final location of the produced file.
	Filepath string `json:"filepath"`
	// WebpageURL is the canonical page of the item.
	WebpageURL string `json:"webpage_url"`
	// PlaylistAutonumber is the 1-based position within the downloaded range (0 when absent).
	PlaylistAutonumber int `json:"playlist_autonumber"`
	// PlaylistIndex is the 1-based position within the whole playlist (0 when absent).
	PlaylistIndex int `json:"playlist_index"`
	// PlaylistCount is the total number of entries the playlist declares.
	PlaylistCount int `json:"playlist_count"`
	// Entries are the resolved playlist entries; unresolvable entries are null.
	Entries []*Info `json:"entries"`
}

// IsPlaylist reports whether the info describes a playlist.
func (i *Info) IsPlaylist() bool {
	return i.Type == "playlist" || i.Entries != nil
}

// ProgressStatus is the lifecycle stage reported by a progress event.
type ProgressStatus string

const (
	// ProgressStatusDownloading is reported for every received chunk.
	ProgressStatusDownloading ProgressStatus = "downloading"
	// ProgressStatusFinished is reported once a stream is fully downloaded.
	ProgressStatusFinished ProgressStatus = "finished"
	// ProgressStatusError is reported when the stream download failed.
	ProgressStatusError ProgressStatus = "error"
)

// ProgressEvent is a single progress notification emitted by the engine.
type ProgressEvent struct {
	// Status is the lifecycle stage.
	Status ProgressStatus
	// PercentString is the formatted percentage, possibly padded and colored.
	PercentString string
	// PlaylistAutonumber is the 1-based position within the downloaded range (0 when absent).
	PlaylistAutonumber int
}

// ResolveOptions configures a simulate-only metadata resolution.
type ResolveOptions struct {
	// IsPlaylist enables playlist expansion.
	IsPlaylist bool
	// PlaylistStart is the 1-based first entry (0 means the first entry).
	PlaylistStart int
	// PlaylistEnd is the 1-based last entry (0 means the last entry).
	PlaylistEnd int
}

// DownloadOptions configures a download run.
type DownloadOptions struct {
	// OutputTemplate is the yt-dlp output template.
	OutputTemplate string
	// FormatSelector is the yt-dlp format selection expression.
	FormatSelector string
	// AudioFormat enables audio extraction into the given codec when not empty.
	AudioFormat string
	// AudioQuality is the extraction quality, e.g. "192K".
	AudioQuality string
	// RecodeVideo re-encodes the merged video into the given container when not empty.
	RecodeVideo string
	// EmbedMetadata writes the engine metadata into the produced file.
	EmbedMetadata bool
	// IsPlaylist enables playlist expansion.
	IsPlaylist bool
	// PlaylistStart is the 1-based first entry (0 means the first entry).
	PlaylistStart int
	// PlaylistEnd is the 1-based last entry (0 means the last entry).
	PlaylistEnd int
	// RateLimit is the maximum download rate in bytes per second (0 means unlimited).
	RateLimit int64
	// OnProgress receives every progress event.
	OnProgress func(event *ProgressEvent)
	// OnFileComplete receives the info of every file once all engine post-processing is done.
	// No further events are delivered until the callback returns.
	OnFileComplete func(info *Info)
}
