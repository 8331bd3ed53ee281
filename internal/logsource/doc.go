// Package logsource abstracts where log lines come from.
//
// A LineSource opens an unbounded byte stream of newline-separated text. The
// pipeline never knows whether it is reading a child `logcat` process, a
// `logcat` launched through a privilege broker such as `su`, a growing file,
// or stdin. Closing the returned stream must unblock any in-flight Read; for
// command sources that means killing the child process.
//
// Probe picks between the direct and the broker path when the configured
// source mode is "auto".
package logsource
