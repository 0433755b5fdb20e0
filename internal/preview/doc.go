// Package preview renders recipe-adjusted previews and thumbnails.
//
// Cache keeps, per asset, one decoded master at the largest envelope asked
// for so far plus downscaled variants at exact requested dimensions. At most
// two assets are resident; touching a third evicts the least recently used
// asset together with all of its variants. Service ties the cache to the
// adjustment engine, the PNG encoder and the on-disk thumbnail store.
package preview
