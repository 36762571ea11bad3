// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The transition extractor needs two numbers from a clip, its duration and
// its frame rate; Result exposes both along with the first video stream.
// Inspector runs the binary through a swappable command runner so callers can be
// tested without ffprobe installed.
package ffprobe
