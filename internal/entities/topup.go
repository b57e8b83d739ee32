package entities

// TopUpPackage is a purchasable bundle of paid generations.
type TopUpPackage struct {
	Generations int64
	Price       string
	URL         string
}
