package models

// SubscriptionPlan is a static catalog entry, defined in code and never
// persisted.
type SubscriptionPlan struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	Price                    int64    `json:"price"`
	Currency                 string   `json:"currency"`
	Duration                 int      `json:"duration"` // months
	Features                 []string `json:"features"`
	FeaturedListingsIncluded int      `json:"featuredListingsIncluded"`
	MaxProperties            int      `json:"maxProperties"` // -1 means unlimited
	Priority                 int      `json:"priority"`
}

// SubscriptionPlans is the fixed catalog the payment flow sells from.
var SubscriptionPlans = []SubscriptionPlan{
	{
		ID:       "basic",
		Name:     "Basic",
		Price:    0,
		Currency: "KES",
		Duration: 1,
		Features: []string{
			"List up to 5 properties",
			"Basic property photos",
			"Standard support",
		},
		FeaturedListingsIncluded: 0,
		MaxProperties:            5,
		Priority:                 1,
	},
	{
		ID:       "premium",
		Name:     "Premium",
		Price:    2500,
		Currency: "KES",
		Duration: 1,
		Features: []string{
			"List up to 20 properties",
			"Unlimited property photos",
			"Virtual tours support",
			"5 featured listings per month",
			"Priority support",
			"Analytics dashboard",
		},
		FeaturedListingsIncluded: 5,
		MaxProperties:            20,
		Priority:                 2,
	},
	{
		ID:       "enterprise",
		Name:     "Enterprise",
		Price:    5000,
		Currency: "KES",
		Duration: 1,
		Features: []string{
			"Unlimited properties",
			"Unlimited property photos & videos",
			"Virtual tours & 360 photos",
			"15 featured listings per month",
			"Premium support",
			"Advanced analytics",
			"Custom branding",
			"API access",
		},
		FeaturedListingsIncluded: 15,
		MaxProperties:            -1,
		Priority:                 3,
	},
}

// PlanByID returns the catalog entry for id, or nil when no plan matches.
func PlanByID(id string) *SubscriptionPlan {
	for i := range SubscriptionPlans {
		if SubscriptionPlans[i].ID == id {
			return &SubscriptionPlans[i]
		}
	}
	return nil
}
