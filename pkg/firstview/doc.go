// Package firstview knows the catalog site: how its collection URLs look,
// how a listing page is laid out and how thumbnails map to full-size
// runway images.
//
// Listing pages carry the collection title in .pageTitle
// ("Designer - x - Album - Gender"), the season in .season, the image
// count in .info and one .picture element per thumbnail. Pagination
// follows the first "next" link until it is missing or disabled.
//
// Thumbnails are small renditions. The full-size URL is derived once per
// collection from the first picture's detail page (img[alt*="ImageID:"])
// and applied to every thumbnail with a Transform.
package firstview
