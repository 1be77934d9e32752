package categorization

// Rule maps a description keyword onto a category name. Patterns are matched
// case-insensitively as substrings of the cleaned description.
type Rule struct {
	Pattern    string
	Category   string
	Priority   int
	Confidence float64
}

// Rule priority tiers. User rules always beat the built-in table, and longer
// overrides of a shared prefix ("UBER EATS" over "UBER") sit a tier above it.
const (
	PriorityUser     = 1000
	PriorityOverride = 200
	PrioritySystem   = 100
)

func systemRule(pattern, category string) Rule {
	return Rule{Pattern: pattern, Category: category, Priority: PrioritySystem, Confidence: 0.95}
}

func overrideRule(pattern, category string) Rule {
	return Rule{Pattern: pattern, Category: category, Priority: PriorityOverride, Confidence: 0.95}
}

// DefaultRules returns the built-in keyword table. It intentionally covers the
// common US merchants; everything else goes to the model.
func DefaultRules() []Rule {
	return []Rule{
		// Groceries
		systemRule("WHOLE FOODS", "Groceries"),
		systemRule("TRADER JOE", "Groceries"),
		systemRule("KROGER", "Groceries"),
		systemRule("SAFEWAY", "Groceries"),
		systemRule("ALDI", "Groceries"),
		systemRule("COSTCO", "Groceries"),
		systemRule("GROCERY", "Groceries"),

		// Dining
		systemRule("STARBUCKS", "Dining"),
		systemRule("MCDONALD", "Dining"),
		systemRule("CHIPOTLE", "Dining"),
		systemRule("DUNKIN", "Dining"),
		systemRule("RESTAURANT", "Dining"),
		systemRule("PIZZA", "Dining"),
		systemRule("COFFEE", "Dining"),

		// Delivery (overrides: these merchants share tokens with other tiers)
		overrideRule("UBER EATS", "Delivery"),
		overrideRule("UBER *EATS", "Delivery"),
		systemRule("DOORDASH", "Delivery"),
		systemRule("GRUBHUB", "Delivery"),
		systemRule("POSTMATES", "Delivery"),
		systemRule("INSTACART", "Delivery"),

		// Transportation
		systemRule("UBER", "Transportation"),
		systemRule("LYFT", "Transportation"),
		systemRule("SHELL", "Transportation"),
		systemRule("CHEVRON", "Transportation"),
		systemRule("EXXON", "Transportation"),
		systemRule("PARKING", "Transportation"),
		systemRule("TRANSIT", "Transportation"),

		// Shopping
		systemRule("AMAZON", "Shopping"),
		systemRule("TARGET", "Shopping"),
		systemRule("WALMART", "Shopping"),
		systemRule("BEST BUY", "Shopping"),
		systemRule("ETSY", "Shopping"),

		// Entertainment
		systemRule("AMC", "Entertainment"),
		systemRule("CINEMA", "Entertainment"),
		systemRule("TICKETMASTER", "Entertainment"),
		systemRule("STEAM", "Entertainment"),
		systemRule("PLAYSTATION", "Entertainment"),

		// Healthcare
		systemRule("CVS", "Healthcare"),
		systemRule("WALGREENS", "Healthcare"),
		systemRule("PHARMACY", "Healthcare"),
		systemRule("CLINIC", "Healthcare"),
		systemRule("DENTAL", "Healthcare"),

		// Housing
		systemRule("RENT", "Housing"),
		systemRule("MORTGAGE", "Housing"),
		systemRule("PROPERTY MGMT", "Housing"),

		// Utilities
		systemRule("ELECTRIC", "Utilities"),
		systemRule("WATER UTIL", "Utilities"),
		systemRule("COMCAST", "Utilities"),
		systemRule("XFINITY", "Utilities"),
		systemRule("VERIZON", "Utilities"),
		systemRule("AT&T", "Utilities"),
		systemRule("T-MOBILE", "Utilities"),
		systemRule("INTERNET", "Utilities"),

		// Subscriptions
		systemRule("NETFLIX", "Subscriptions"),
		systemRule("SPOTIFY", "Subscriptions"),
		systemRule("HULU", "Subscriptions"),
		systemRule("DISNEY PLUS", "Subscriptions"),
		systemRule("DISNEY+", "Subscriptions"),
		systemRule("APPLE.COM/BILL", "Subscriptions"),
		systemRule("AUDIBLE", "Subscriptions"),
		systemRule("PATREON", "Subscriptions"),
		systemRule("ICLOUD", "Subscriptions"),
		systemRule("YOUTUBE PREMIUM", "Subscriptions"),
		systemRule("GYM", "Subscriptions"),
		systemRule("FITNESS", "Subscriptions"),

		// Income
		systemRule("PAYCHECK", "Income"),
		systemRule("PAYROLL", "Income"),
		systemRule("DIRECT DEP", "Income"),
		systemRule("INTEREST PAYMENT", "Income"),
		systemRule("TAX REFUND", "Income"),
	}
}
