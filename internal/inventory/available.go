package inventory

// AvailableQty sums the quantity of lots matching productID and size exactly.
func AvailableQty(lots []Lot, productID, size string) int {
	if productID == "" || size == "" {
		return 0
	}
	total := 0
	for _, l := range lots {
		if l.ProductID == productID && l.Size == size {
			total += l.Qty
		}
	}
	return total
}
