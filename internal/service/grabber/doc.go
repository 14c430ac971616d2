// Package grabber acquires media through the extraction engine: it resolves metadata,
// runs downloads while tracking progress, post-processes every finished file and
// reports the whole acquisition to the foreground as a stream of events.
package grabber
