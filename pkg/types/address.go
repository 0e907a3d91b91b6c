package types

// AddressSnapshot is the delivery address copied onto an order at creation.
// Later edits to the customer's address book never reach existing orders.
type AddressSnapshot struct {
	RecipientName string   `json:"recipient_name"`
	Phone         string   `json:"phone"`
	Street        string   `json:"street"`
	City          string   `json:"city"`
	Province      string   `json:"province"`
	PostalCode    string   `json:"postal_code"`
	RegionCode    string   `json:"region_code"`
	Location      GeoPoint `json:"location"`
}
