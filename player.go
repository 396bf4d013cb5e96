package server

import "time"

type FacingDirection string

const (
	FacingUp    FacingDirection = "up"
	FacingDown  FacingDirection = "down"
	FacingLeft  FacingDirection = "left"
	FacingRight FacingDirection = "right"

	defaultFacing FacingDirection = FacingDown
)

// parseFacing validates a facing string received from the client, falling
// back to the default when the value is missing or out of range.
func parseFacing(value string) FacingDirection {
	switch FacingDirection(value) {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return FacingDirection(value)
	default:
		return defaultFacing
	}
}

// ItemStack is one inventory slot as reported by the client. Inventories are
// client-authoritative cosmetics; the server only reads them to infer the
// equipped item shown to the opponent.
type ItemStack struct {
	Slot     int    `json:"slot"`
	Item     string `json:"item"`
	Qty      int    `json:"qty,omitempty"`
	Equipped bool   `json:"equipped,omitempty"`
}

// Appearance is the once-only visual snapshot taken from a player's first
// state submission.
type Appearance struct {
	Outfit   string `json:"outfit,omitempty"`
	Hat      string `json:"hat,omitempty"`
	SkinTone string `json:"skinTone,omitempty"`
}

// EscortRef is a visual-only entourage entry trailing a player. Never
// gameplay-authoritative.
type EscortRef struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// playerSnapshot is the live per-player state inside a room, upserted on
// every push.
type playerSnapshot struct {
	X         float64
	Y         float64
	Facing    FacingDirection
	Health    float64
	Inventory []ItemStack
	UpdatedAt time.Time
}

// identitySnapshot is captured exactly once per player per room.
type identitySnapshot struct {
	Username   string
	Appearance Appearance
}

// inferEquipped picks the item the opponent should be rendered holding: the
// first slot flagged equipped, then the first non-empty slot, then bare hands.
func inferEquipped(inventory []ItemStack) string {
	for _, stack := range inventory {
		if stack.Equipped && stack.Item != "" {
			return stack.Item
		}
	}
	for _, stack := range inventory {
		if stack.Item != "" {
			return stack.Item
		}
	}
	return WeaponFists
}

// truncateEscort bounds the escort list to the visual limit.
func truncateEscort(escort []EscortRef) []EscortRef {
	if len(escort) <= escortLimit {
		return append([]EscortRef(nil), escort...)
	}
	return append([]EscortRef(nil), escort[:escortLimit]...)
}
