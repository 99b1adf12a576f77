// internal/tier/tier.go
package tier

// Tier is a ranked service level. Ranks increase strictly with privilege, so
// ordering questions always reduce to integer comparison.
type Tier string

const (
	Free   Tier = "free"
	Bronze Tier = "bronze"
	Silver Tier = "silver"
	Gold   Tier = "gold"
)

var tierOrder = map[Tier]int{
	Free:   0,
	Bronze: 1,
	Silver: 2,
	Gold:   3,
}

// Parse maps a tier name to a Tier. Unknown or empty names resolve to Free.
func Parse(s string) Tier {
	t := Tier(s)
	if _, ok := tierOrder[t]; ok {
		return t
	}
	return Free
}

// Valid reports whether t is a known tier name.
func Valid(s string) bool {
	_, ok := tierOrder[Tier(s)]
	return ok
}

// Rank returns the privilege rank of t. Unknown tiers rank as Free.
func (t Tier) Rank() int {
	if r, ok := tierOrder[t]; ok {
		return r
	}
	return 0
}

func (t Tier) String() string {
	return string(t)
}

// Meets reports whether t is sufficient to satisfy the required tier.
func (t Tier) Meets(required Tier) bool {
	return t.Rank() >= required.Rank()
}

// Max returns the higher-ranked of two tiers.
func Max(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
