// Package ytdlp drives the yt-dlp executable as an extraction engine.
// It resolves metadata in simulate mode, runs downloads while translating
// the engine's progress and per-file completion output into typed callbacks,
// and classifies engine failures as retryable or fatal.
package ytdlp
