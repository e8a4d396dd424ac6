// Package archive reads and writes project archives: a tar stream wrapped in
// a single compression filter.
//
// Reading is strictly sequential. Each Entry must be drained (or abandoned)
// before Next is called again; the tar stream cannot seek back to it.
//
// Failures are reported as *Error with Kind set to ErrTransport when the
// underlying byte stream failed, or ErrFormat when the stream was readable
// but the compression or tar framing was not.
package archive
