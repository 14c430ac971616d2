// Package artwork fetches item thumbnails and turns them into square JPEG cover images.
package artwork
