// Command imagetruth analyzes images for signs of synthetic generation and
// keeps a local history of confident verdicts.
//
// Usage:
//
//	imagetruth analyze photo.jpg https://example.com/image.png
//	imagetruth history --limit 20
//	imagetruth config init
package main
