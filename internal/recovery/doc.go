// Package recovery tracks partial downloads on disk and decides whether they
// can be resumed.
//
// A download of dest is written to dest + ".part" and renamed to dest once
// complete. A partial file left behind by a failed or cancelled transfer is
// resumed when the server honours byte ranges.
package recovery
