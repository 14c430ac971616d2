// Package app wires the configuration, the yt-dlp engine, the post-processing pipeline and the orchestrator
// together and acquires every URL passed on the command line, one at a time, rendering progress in the terminal.
package app
