package model

// Store is a physical location ("tienda") identified by a short code.
type Store struct {
	ID       int    `db:"id"       json:"id"`
	Code     string `db:"code"     json:"code"`
	Location string `db:"location" json:"location"`
}
