// Package hexio converts between Intel HEX files and image.Image,
// built on github.com/unixdj/ihex. The CLI maps the conventional "-"
// file marker to stdin/stdout before calling into this package; hexio
// itself only deals in io.Reader/io.Writer.
package hexio
