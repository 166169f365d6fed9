package models

// CatalogItem is one entry of the loaded catalog. Row is the item's position in
// the catalog and the index it has in the similarity matrix.
type CatalogItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Row   int    `json:"row"`
}
