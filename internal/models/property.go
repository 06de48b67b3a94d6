package models

import "time"

type PropertyType string

const (
	TypeHouse     PropertyType = "house"
	TypeApartment PropertyType = "apartment"
	TypeDuplex    PropertyType = "duplex"
	TypeStudio    PropertyType = "studio"
	TypeCondo     PropertyType = "condo"
	TypeTownhouse PropertyType = "townhouse"
)

type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type Location struct {
	Address     string      `bson:"address" json:"address"`
	City        string      `bson:"city" json:"city"`
	County      string      `bson:"county" json:"county"`
	Country     string      `bson:"country" json:"country"`
	Coordinates Coordinates `bson:"coordinates" json:"coordinates"`
}

// OwnerInfo is denormalized onto every property so listing pages
// never need a second lookup per card.
type OwnerInfo struct {
	Name     string `bson:"name" json:"name"`
	Phone    string `bson:"phone" json:"phone"`
	Email    string `bson:"email" json:"email"`
	Verified bool   `bson:"verified" json:"verified"`
}

type Property struct {
	ID          string       `bson:"_id,omitempty" json:"id"`
	Title       string       `bson:"title" json:"title"`
	Description string       `bson:"description" json:"description"`
	Price       int64        `bson:"price" json:"price"`
	Currency    string       `bson:"currency" json:"currency"`
	Location    Location     `bson:"location" json:"location"`
	Type        PropertyType `bson:"propertyType" json:"propertyType"`

	Bedrooms      int  `bson:"bedrooms" json:"bedrooms"`
	Bathrooms     int  `bson:"bathrooms" json:"bathrooms"`
	SquareFootage int  `bson:"squareFootage,omitempty" json:"squareFootage,omitempty"`
	Furnished     bool `bson:"furnished" json:"furnished"`

	Amenities []string `bson:"amenities" json:"amenities"`
	Images    []string `bson:"images" json:"images"`

	IsAvailable   bool      `bson:"isAvailable" json:"isAvailable"`
	AvailableFrom time.Time `bson:"availableFrom" json:"availableFrom"`
	LeaseDuration int       `bson:"leaseDuration" json:"leaseDuration"` // months

	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	OwnerInfo OwnerInfo `bson:"ownerInfo" json:"ownerInfo"`

	Views     int64 `bson:"views" json:"views"`
	Saves     int64 `bson:"saves" json:"saves"`
	Inquiries int64 `bson:"inquiries" json:"inquiries"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	IsFeatured    bool       `bson:"isFeatured" json:"isFeatured"`
	FeaturedUntil *time.Time `bson:"featuredUntil,omitempty" json:"featuredUntil,omitempty"`

	AverageRating float64 `bson:"averageRating,omitempty" json:"averageRating,omitempty"`
	ReviewCount   int     `bson:"reviewCount" json:"reviewCount"`
}

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortRating    SortOrder = "rating"
	SortFeatured  SortOrder = "featured"
)

// PriceRange bounds are independent: either side may be zero to mean unset.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// PropertyFilter is a pure value object rebuilt per search. Furnished is
// tri-state: nil means "any".
type PropertyFilter struct {
	Location      string       `json:"location,omitempty"`
	PriceRange    *PriceRange  `json:"priceRange,omitempty"`
	PropertyTypes []string     `json:"propertyTypes,omitempty"`
	Bedrooms      int          `json:"bedrooms,omitempty"`
	Bathrooms     int          `json:"bathrooms,omitempty"`
	Amenities     []string     `json:"amenities,omitempty"`
	Furnished     *bool        `json:"furnished,omitempty"`
	AvailableFrom *time.Time   `json:"availableFrom,omitempty"`
	SortBy        SortOrder    `json:"sortBy,omitempty"`
}

type InquiryStatus string

const (
	InquiryPending          InquiryStatus = "pending"
	InquiryResponded        InquiryStatus = "responded"
	InquiryViewingScheduled InquiryStatus = "viewing_scheduled"
	InquiryClosed           InquiryStatus = "closed"
)

type PropertyInquiry struct {
	ID         string        `bson:"_id,omitempty" json:"id"`
	PropertyID string        `bson:"propertyId" json:"propertyId"`
	HunterID   string        `bson:"hunterId" json:"hunterId"`
	OwnerID    string        `bson:"ownerId" json:"ownerId"`
	Message    string        `bson:"message" json:"message"`
	Status     InquiryStatus `bson:"status" json:"status"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time     `bson:"updatedAt" json:"updatedAt"`
}
