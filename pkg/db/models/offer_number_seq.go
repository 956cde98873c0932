package models

// OfferNumberSeq backs the per-year offer numbering. Rows are locked FOR
// UPDATE while a number is assigned so concurrent commits never collide.
type OfferNumberSeq struct {
	Year    int `gorm:"column:year;primaryKey"`
	LastSeq int `gorm:"column:last_seq;not null;default:0"`
}

func (OfferNumberSeq) TableName() string { return "offer_number_seqs" }
